package receiver

// ProductInfo describes one AWIPS product class.
type ProductInfo struct {
	Name  string
	Class string
}

// productCatalog maps the three-letter AWIPS category to its product
// metadata, covering the products commonly seen on the wire. Unknown
// categories pass through untouched.
var productCatalog = map[string]ProductInfo{
	"AFD": {Name: "Area Forecast Discussion", Class: "Forecast"},
	"ZFP": {Name: "Zone Forecast Product", Class: "Forecast"},
	"NOW": {Name: "Short Term Forecast", Class: "Forecast"},
	"PFM": {Name: "Point Forecast Matrices", Class: "Forecast"},
	"AFM": {Name: "Area Forecast Matrices", Class: "Forecast"},
	"SFT": {Name: "Tabular State Forecast", Class: "Forecast"},

	"FWF": {Name: "Fire Weather Forecast", Class: "Fire Weather"},
	"FWS": {Name: "Fire Weather Outlook", Class: "Fire Weather"},

	"TAF": {Name: "Terminal Aerodrome Forecast", Class: "Aviation"},
	"SAO": {Name: "Surface Aviation Observation", Class: "Aviation"},

	"TOR": {Name: "Tornado Warning", Class: "Warning"},
	"SVR": {Name: "Severe Thunderstorm Warning", Class: "Warning"},
	"EWW": {Name: "Extreme Wind Warning", Class: "Warning"},
	"SMW": {Name: "Special Marine Warning", Class: "Warning"},
	"FFW": {Name: "Flash Flood Warning", Class: "Warning"},
	"FLW": {Name: "Flood Warning", Class: "Warning"},
	"CFW": {Name: "Coastal Flood Warning", Class: "Warning"},
	"WSW": {Name: "Winter Storm Warning", Class: "Warning"},
	"FFA": {Name: "Flash Flood Watch", Class: "Watch"},
	"SVS": {Name: "Severe Weather Statement", Class: "Statement"},
	"SPS": {Name: "Special Weather Statement", Class: "Statement"},
	"MWS": {Name: "Marine Weather Statement", Class: "Marine"},
	"OFF": {Name: "Offshore Forecast", Class: "Marine"},
	"CWF": {Name: "Coastal Waters Forecast", Class: "Marine"},
	"NSH": {Name: "Nearshore Marine Forecast", Class: "Marine"},

	"FLS": {Name: "Flood Statement", Class: "Hydrology"},
	"HML": {Name: "Hydrologic Monitoring Statement", Class: "Hydrology"},
	"RR1": {Name: "Hydrologic Data (1-hour)", Class: "Hydrology"},
	"RR8": {Name: "Hydrologic Data (8-hour)", Class: "Hydrology"},

	"CLI": {Name: "Daily Climate Report", Class: "Climate"},
	"RTP": {Name: "Regional Temperature/Precipitation", Class: "Climate"},
	"RER": {Name: "Record Event Report", Class: "Climate"},
	"LSR": {Name: "Local Storm Report", Class: "Observation"},
	"PSH": {Name: "Post Storm Report", Class: "Observation"},
	"RWR": {Name: "Regional Weather Roundup", Class: "Summary"},
	"RWS": {Name: "Regional Weather Summary", Class: "Summary"},

	"PNS": {Name: "Public Information Statement", Class: "Public Info"},
	"HWO": {Name: "Hazardous Weather Outlook", Class: "Outlook"},
}

// LookupProduct resolves a product category (the first three characters
// of an AWIPS ID) to its catalog entry.
func LookupProduct(category string) (ProductInfo, bool) {
	info, ok := productCatalog[category]
	return info, ok
}

// ProductName returns the friendly name for an AWIPS category, or the
// category itself when unknown.
func ProductName(category string) string {
	if info, ok := productCatalog[category]; ok {
		return info.Name
	}
	return category
}
