package output

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/fleetware/cardbridge/pkg/cards"
)

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
}

// WriteCardTable renders the card registry sorted by card number.
func WriteCardTable(w io.Writer, list []cards.Card) error {
	sorted := make([]cards.Card, len(list))
	copy(sorted, list)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })

	tw := newTabWriter(w)
	fmt.Fprintln(tw, "CARD NUMBER\tNAME\tICCID\tEXPIRES\tREMOTE ID")
	for _, c := range sorted {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Number, orDash(c.Name), orDash(c.ICCID), orDash(c.Expiry), orDash(c.RemoteID))
	}
	return tw.Flush()
}

// AuthStatus is the printable view of the stored credential chain.
type AuthStatus struct {
	Authenticated  bool   `json:"authenticated" yaml:"authenticated"`
	Email          string `json:"email,omitempty" yaml:"email,omitempty"`
	Name           string `json:"name,omitempty" yaml:"name,omitempty"`
	Organization   string `json:"organization,omitempty" yaml:"organization,omitempty"`
	SessionExpires string `json:"session_expires,omitempty" yaml:"session_expires,omitempty"`
	FleetExpires   string `json:"fleet_expires,omitempty" yaml:"fleet_expires,omitempty"`
	FleetCompanyID string `json:"fleet_company_id,omitempty" yaml:"fleet_company_id,omitempty"`
	BridgeClientID string `json:"bridge_client_id,omitempty" yaml:"bridge_client_id,omitempty"`
	BridgeDeviceID string `json:"bridge_device_id,omitempty" yaml:"bridge_device_id,omitempty"`
}

// WriteAuthStatus renders the auth status as a key/value table.
func WriteAuthStatus(w io.Writer, st AuthStatus) error {
	tw := newTabWriter(w)
	fmt.Fprintf(tw, "Authenticated:\t%t\n", st.Authenticated)
	if st.Email != "" {
		fmt.Fprintf(tw, "Email:\t%s\n", st.Email)
	}
	if st.Name != "" {
		fmt.Fprintf(tw, "Name:\t%s\n", st.Name)
	}
	if st.Organization != "" {
		fmt.Fprintf(tw, "Organization:\t%s\n", st.Organization)
	}
	if st.SessionExpires != "" {
		fmt.Fprintf(tw, "Session expires:\t%s\n", st.SessionExpires)
	}
	if st.FleetExpires != "" {
		fmt.Fprintf(tw, "Fleet token expires:\t%s\n", st.FleetExpires)
	}
	if st.FleetCompanyID != "" {
		fmt.Fprintf(tw, "Fleet company:\t%s\n", st.FleetCompanyID)
	}
	fmt.Fprintf(tw, "Bridge client:\t%s\n", orDash(st.BridgeClientID))
	fmt.Fprintf(tw, "Bridge device:\t%s\n", orDash(st.BridgeDeviceID))
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
