// Package types defines the shared data structures passed between the
// receiver, parser, pipeline, and sinks.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
	"time"
)

// WireMessage is a single product as it arrives off the NWWS-OI feed,
// before parsing. Created once by the receiver and never mutated.
type WireMessage struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject,omitempty"`
	BodyText   string    `json:"body_text"`
	IssuedAt   time.Time `json:"issued_at"`
	AwipsID    string    `json:"awips_id"`
	Cccc       string    `json:"cccc"`
	Ttaaii     string    `json:"ttaaii"`
	ReceivedAt time.Time `json:"received_at"`
	RoomJID    string    `json:"room_jid"`
}

// VTECFixed is the fixed identifier (k field) of a P-VTEC string.
type VTECFixed string

const (
	VTECOperational               VTECFixed = "O"
	VTECTest                      VTECFixed = "T"
	VTECExperimental              VTECFixed = "E"
	VTECExperimentalInOperational VTECFixed = "X"
)

// VTECAction is the action code (aaa field) of a P-VTEC string.
type VTECAction string

const (
	ActionNew      VTECAction = "NEW"
	ActionContinue VTECAction = "CON"
	ActionExtended VTECAction = "EXT"
	ActionExtArea  VTECAction = "EXA"
	ActionExtBoth  VTECAction = "EXB"
	ActionCancel   VTECAction = "CAN"
	ActionUpgrade  VTECAction = "UPG"
	ActionExpire   VTECAction = "EXP"
	ActionRoutine  VTECAction = "ROU"
	ActionCorrect  VTECAction = "COR"
)

// VTEC is a decoded primary Valid Time Event Code. Begin or End equal to
// the zero time encode "event has begun" and "until further notice"
// respectively (ten zeros on the wire).
type VTEC struct {
	Fixed        VTECFixed  `json:"fixed"`
	Action       VTECAction `json:"action"`
	Office       string     `json:"office"`
	Phenomenon   string     `json:"phenomenon"`
	Significance string     `json:"significance"`
	ETN          int        `json:"etn"`
	Begin        time.Time  `json:"begin,omitzero"`
	End          time.Time  `json:"end,omitzero"`
	Raw          string     `json:"raw"`
}

// UntilFurtherNotice reports whether the event has no scheduled end.
func (v VTEC) UntilFurtherNotice() bool {
	return v.End.IsZero()
}

// HVTEC is a decoded hydrologic VTEC string, present only alongside a
// P-VTEC with a flood phenomenon (FF, FA, FL, HY).
type HVTEC struct {
	NWSLI          string    `json:"nwsli"`
	Severity       string    `json:"severity"`
	ImmediateCause string    `json:"immediate_cause"`
	FloodBegin     time.Time `json:"flood_begin,omitzero"`
	FloodCrest     time.Time `json:"flood_crest,omitzero"`
	FloodEnd       time.Time `json:"flood_end,omitzero"`
	RecordStatus   string    `json:"record_status"`
	Raw            string    `json:"raw"`
}

// LatLon is one polygon vertex in decimal degrees, west-negative longitude.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// TimeMotLoc captures a TIME...MOT...LOC storm motion line.
type TimeMotLoc struct {
	Time         time.Time `json:"time"`
	DirectionDeg int       `json:"direction_deg"`
	SpeedKt      int       `json:"speed_kt"`
	Locations    []LatLon  `json:"locations"`
}

// GeoDescriptor is a resolved UGC code from the geographic lookup table.
type GeoDescriptor struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	State    string `json:"state"`
	Type     string `json:"type"` // "county" or "zone"
	FIPS     string `json:"fips_or_zone_code"`
	Centroid LatLon `json:"centroid"`
}

// Segment is one $$-delimited section of a product.
type Segment struct {
	UGCCodes     []string          `json:"ugc_codes"`
	UGCExpiresAt time.Time         `json:"ugc_expires_at,omitzero"`
	VTEC         []VTEC            `json:"vtec,omitempty"`
	HVTEC        []HVTEC           `json:"h_vtec,omitempty"`
	Headlines    []string          `json:"headlines,omitempty"`
	Polygon      []LatLon          `json:"polygon,omitempty"`
	TimeMotLoc   *TimeMotLoc       `json:"time_mot_loc,omitempty"`
	IBWTags      map[string]string `json:"ibw_tags,omitempty"`
	Body         string            `json:"body"`
}

// WeatherEvent is the canonical pipeline event produced by the parser.
// Immutable after creation; copied by reference through the pipeline.
type WeatherEvent struct {
	EventID         string          `json:"event_id"`
	ProductID       string          `json:"product_id"`
	WMO             string          `json:"wmo"`
	AwipsID         string          `json:"awips_id"`
	Cccc            string          `json:"cccc"`
	ProductCategory string          `json:"product_category"`
	IssuedAt        time.Time       `json:"issued_at"`
	ReceivedAt      time.Time       `json:"received_at"`
	Text            string          `json:"text"`
	Segments        []Segment       `json:"segments"`
	Geo             []GeoDescriptor `json:"geo,omitempty"`
	Fingerprint     string          `json:"fingerprint"`
}

// MakeProductID builds the product identity string cccc-awipsid-issued.
func MakeProductID(cccc, awipsID string, issuedAt time.Time) string {
	return fmt.Sprintf("%s-%s-%s", cccc, awipsID, issuedAt.UTC().Format("20060102T150405Z"))
}

// Fingerprint computes the stable duplicate-suppression hash for a product:
// FNV-64a over the issuing office, AWIPS ID, issuance time, and the SHA-256
// of the body text. Two deliveries of the same product hash identically
// regardless of receipt time or feed session.
func Fingerprint(cccc, awipsID string, issuedAt time.Time, text string) string {
	sum := sha256.Sum256([]byte(text))

	h := fnv.New64a()
	h.Write([]byte(cccc))
	h.Write([]byte{'|'})
	h.Write([]byte(awipsID))
	h.Write([]byte{'|'})
	h.Write([]byte(issuedAt.UTC().Format(time.RFC3339)))
	h.Write([]byte{'|'})
	h.Write([]byte(hex.EncodeToString(sum[:])))
	return fmt.Sprintf("%016x", h.Sum64())
}

// Origin returns the FIFO ordering key for this event. Events sharing an
// origin must reach every sink in issuance order.
func (e *WeatherEvent) Origin() string {
	return e.Cccc + "/" + e.AwipsID
}
