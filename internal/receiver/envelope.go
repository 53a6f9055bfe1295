package receiver

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gosrc.io/xmpp/stanza"
)

// ProductEnvelope is the custom <x xmlns='nwws-oi'> extension carried by
// every weather-wire group-chat stanza. The element text is the raw
// product; the attributes identify it.
//
// Reference: https://www.weather.gov/nwws/configuration
type ProductEnvelope struct {
	stanza.MsgExtension
	XMLName xml.Name `xml:"nwws-oi x"`
	Text    string   `xml:",chardata"`
	// Four character issuing center
	Cccc string `xml:"cccc,attr"`
	// Six character WMO product designator
	Ttaaii string `xml:"ttaaii,attr"`
	// Issuance instant, RFC 3339 UTC
	Issue string `xml:"issue,attr"`
	// AWIPS ID, also called the AFOS PIL
	AwipsID string `xml:"awipsid,attr"`
	// Feed sequence marker, "pid.seq": the ingest process ID and an
	// incrementing per-product counter. Gaps in seq mean missed products.
	ID string `xml:"id,attr"`
}

// SequenceID splits the envelope id into its ingest process ID and
// per-product sequence number.
func (e *ProductEnvelope) SequenceID() (processID string, seq int, err error) {
	parts := strings.Split(e.ID, ".")
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("malformed sequence id %q", e.ID)
	}
	seq, err = strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, fmt.Errorf("malformed sequence id %q: %w", e.ID, err)
	}
	return parts[0], seq, nil
}

// IssuedAt parses the issue attribute.
func (e *ProductEnvelope) IssuedAt() (time.Time, error) {
	return time.Parse(time.RFC3339, e.Issue)
}

func init() {
	stanza.TypeRegistry.MapExtension(stanza.PKTMessage, xml.Name{Space: "nwws-oi", Local: "x"}, ProductEnvelope{})
}
