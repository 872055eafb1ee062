// Package prompt asks the operator for lookup input on a terminal.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/term"

	"github.com/HerbHall/leasetrace/internal/correlate"
	"github.com/HerbHall/leasetrace/internal/resolver"
	"github.com/HerbHall/leasetrace/internal/scanner"
	"github.com/HerbHall/leasetrace/pkg/models"
)

var _ correlate.Prompter = (*Terminal)(nil)

// Terminal is a line oriented correlate.Prompter.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
	now func() time.Time
}

// NewTerminal reads answers from in and writes questions to out.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out, now: time.Now}
}

// ask prints question and returns the trimmed answer. A final line without
// a newline is still an answer.
func (t *Terminal) ask(ctx context.Context, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(t.out, question)
	line, err := t.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// TargetIP asks for the IPv4 address to trace.
func (t *Terminal) TargetIP(ctx context.Context) (netip.Addr, error) {
	s, err := t.ask(ctx, "IPv4 address to trace: ")
	if err != nil {
		return netip.Addr{}, err
	}
	return ParseIPv4(s)
}

// Cutoff asks for the lease cutoff field by field, in UTC.
func (t *Terminal) Cutoff(ctx context.Context) (time.Time, error) {
	fmt.Fprintln(t.out, bold("Lease cutoff (UTC)"))
	var fields [4]string
	questions := [4]string{"  month (mm): ", "  day (dd): ", "  year (yyyy): ", "  time (hh:mm, 24h): "}
	for i, q := range questions {
		s, err := t.ask(ctx, q)
		if err != nil {
			return time.Time{}, err
		}
		fields[i] = s
	}
	return ParseCutoff(fields[0], fields[1], fields[2], fields[3], t.now())
}

// NetworkID asks for a network ID, or "" when the operator wants to search by name.
func (t *Terminal) NetworkID(ctx context.Context) (string, error) {
	fmt.Fprintln(t.out, "  1. Enter a network ID")
	fmt.Fprintln(t.out, "  2. Search networks by name")
	choice, err := t.ask(ctx, "Select option: ")
	if err != nil {
		return "", err
	}
	switch choice {
	case "1":
		id, err := t.ask(ctx, "Network ID (L_... or N_...): ")
		if err != nil {
			return "", err
		}
		if !ValidNetworkID(id) {
			return "", fmt.Errorf("%w: %q is not a network ID", ErrInvalidInput, id)
		}
		return id, nil
	case "2":
		return "", nil
	}
	return "", fmt.Errorf("%w: option %q", ErrInvalidInput, choice)
}

// SearchText asks for the network name to search for.
func (t *Terminal) SearchText(ctx context.Context) (string, error) {
	s, err := t.ask(ctx, "Network name: ")
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("%w: empty network name", ErrInvalidInput)
	}
	return s, nil
}

// SearchMode asks whether to take the best match or list the top matches.
func (t *Terminal) SearchMode(ctx context.Context) (correlate.SearchMode, error) {
	fmt.Fprintln(t.out, "  1. Best match")
	fmt.Fprintln(t.out, "  2. List top matches")
	choice, err := t.ask(ctx, "Select option: ")
	if err != nil {
		return 0, err
	}
	switch choice {
	case "1":
		return correlate.SearchBest, nil
	case "2":
		return correlate.SearchList, nil
	}
	return 0, fmt.Errorf("%w: option %q", ErrInvalidInput, choice)
}

// ConfirmMatch asks the operator to accept the best match.
func (t *Terminal) ConfirmMatch(ctx context.Context, m resolver.Match) (bool, error) {
	fmt.Fprintf(t.out, "Best match: %s (%s), score %d\n", bold(m.Network.Name), m.Network.ID, m.Score)
	s, err := t.ask(ctx, "Use this network? [y/n]: ")
	if err != nil {
		return false, err
	}
	return ParseYesNo(s)
}

// ChooseRow shows matches numbered from 1. "n" or "s" searches again.
func (t *Terminal) ChooseRow(ctx context.Context, matches []resolver.Match) (int, bool, error) {
	table := tablewriter.NewWriter(t.out)
	table.SetHeader([]string{"#", "Network", "ID", "Score"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	for i, m := range matches {
		table.Append([]string{strconv.Itoa(i + 1), m.Network.Name, m.Network.ID, strconv.Itoa(m.Score)})
	}
	table.Render()

	s, err := t.ask(ctx, "Row number, or n to search again: ")
	if err != nil {
		return 0, false, err
	}
	if strings.EqualFold(s, "n") || strings.EqualFold(s, "s") {
		return 0, true, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, fmt.Errorf("%w: row %q", ErrInvalidInput, s)
	}
	return n - 1, false, nil
}

// ShowFound prints the found lease and its client.
func (t *Terminal) ShowFound(network models.Network, res scanner.Result) {
	ev := res.Event
	fmt.Fprintln(t.out)
	fmt.Fprintln(t.out, green(bold("Lease found")))
	fmt.Fprintf(t.out, "  Network:     %s\n", networkLabel(network))
	fmt.Fprintf(t.out, "  Leased at:   %s\n", ev.OccurredAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(t.out, "  IP:          %s\n", ev.AssignedIP)
	if ev.VLAN != "" {
		fmt.Fprintf(t.out, "  VLAN:        %s\n", ev.VLAN)
	}
	fmt.Fprintf(t.out, "  Client:      %s (%s)\n", ev.ClientDescription, ev.ClientID)
	fmt.Fprintf(t.out, "  MAC:         %s\n", res.Detail.MAC)
	if res.Detail.Manufacturer != "" {
		fmt.Fprintf(t.out, "  Vendor:      %s\n", res.Detail.Manufacturer)
	}
	if res.Detail.OS != "" {
		fmt.Fprintf(t.out, "  OS:          %s\n", res.Detail.OS)
	}
	if !res.Detail.LastSeen.IsZero() {
		fmt.Fprintf(t.out, "  Last seen:   %s\n", res.Detail.LastSeen.UTC().Format(time.RFC3339))
	}
	if res.DetailErr != nil {
		fmt.Fprintln(t.out, dim("  (client lookup failed; details taken from the lease event)"))
	}
	fmt.Fprintln(t.out, dim(fmt.Sprintf("  Scanned %d page(s), %d event(s)", res.PagesRead, res.EventsSeen)))
}

// ConfirmBlock asks whether to block the leasing client.
func (t *Terminal) ConfirmBlock(ctx context.Context, lease models.LeaseEvent) (bool, error) {
	s, err := t.ask(ctx, fmt.Sprintf("Block client %s (%s)? [y/n]: ", lease.ClientID, lease.ClientMAC))
	if err != nil {
		return false, err
	}
	return ParseYesNo(s)
}

// Invalid reports rejected input before the question is asked again.
func (t *Terminal) Invalid(err error) {
	fmt.Fprintln(t.out, red("Invalid input: "+strings.TrimPrefix(err.Error(), ErrInvalidInput.Error()+": ")))
}

func networkLabel(n models.Network) string {
	if n.Name == "" {
		return n.ID
	}
	return n.Name + " (" + n.ID + ")"
}

// ReadSecret reads a line from f without echo when f is a terminal.
func ReadSecret(f *os.File, out io.Writer, label string) (string, error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("%s: stdin is not a terminal", label)
	}
	fmt.Fprintf(out, "%s: ", label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", label, err)
	}
	return strings.TrimSpace(string(b)), nil
}
