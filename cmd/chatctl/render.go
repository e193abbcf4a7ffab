package main

import (
	"chat-guard/domain"
	"chat-guard/infrastructure/grpc/chatv1"
	"fmt"
	"io"
	"strconv"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

func ok(s string) string {
	return color.FgGreen.Render(s)
}

func failure(err error) string {
	return color.FgRed.Render("! " + err.Error())
}

func verdict(v string) string {
	switch domain.ParseVerdict(v) {
	case domain.VerdictFlagged:
		return color.FgRed.Render(v)
	case domain.VerdictClassificationFailed:
		return color.FgYellow.Render(v)
	case domain.VerdictClean:
		return color.FgGreen.Render(v)
	default:
		return color.FgDarkGray.Render(v)
	}
}

// formatLine renders one timeline entry. Pending echoes have no sequence yet.
func formatLine(m domain.Message) string {
	seq := "  …"
	if m.Committed() {
		seq = fmt.Sprintf("%3d", m.Sequence)
	}
	author := string(m.Author)
	if m.LocalAuthor {
		author = color.FgCyan.Render(author)
	}
	text := m.Displayed
	switch {
	case !m.Committed():
		text = color.FgDarkGray.Render(text)
	case m.Flagged():
		text = color.FgRed.Render(text)
	case m.Audit:
		text = color.FgYellow.Render(text)
	}
	return fmt.Sprintf("%s %s %s: %s", seq, m.SubmittedAt.Local().Format("15:04:05"), author, text)
}

func formatMessage(m chatv1.Message) string {
	return fmt.Sprintf("#%d %s [%s] %s", m.Sequence, m.Author, verdict(m.Verdict), m.Text)
}

func table(out io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(out)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	t.SetAutoFormatHeaders(true)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetCenterSeparator("")
	t.SetColumnSeparator("")
	t.SetRowSeparator("")
	t.SetHeaderLine(false)
	t.SetBorder(false)
	t.SetTablePadding("\t")
	return t
}

func renderRooms(out io.Writer, rooms []chatv1.Room) {
	t := table(out, "ID", "Name", "Participants", "Tail", "Created")
	for _, r := range rooms {
		t.Append([]string{r.ID, r.Name, strconv.Itoa(r.Participants), strconv.FormatUint(r.Tail, 10), r.CreatedAt.Local().Format("2006-01-02 15:04")})
	}
	t.Render()
}

func renderParticipants(out io.Writer, participants []chatv1.Participant) {
	t := table(out, "ID", "Name", "Avatar", "Last ack")
	for _, p := range participants {
		t.Append([]string{p.ID, lo.CoalesceOrEmpty(p.DisplayName, "-"), lo.CoalesceOrEmpty(p.AvatarURL, "-"), strconv.FormatUint(p.LastAck, 10)})
	}
	t.Render()
}

func renderMessages(out io.Writer, messages []chatv1.Message) {
	t := table(out, "Seq", "Time", "Author", "Verdict", "Text")
	for _, m := range messages {
		t.Append([]string{strconv.FormatUint(m.Sequence, 10), m.CommittedAt.Local().Format("15:04:05"), m.Author, verdict(m.Verdict), m.Text})
	}
	t.Render()
}

func renderAudit(out io.Writer, entries []chatv1.AuditEntry) {
	t := table(out, "At", "Room", "Author", "Kind", "Lang", "Label", "Text")
	for _, e := range entries {
		t.Append([]string{e.At.Local().Format("2006-01-02 15:04:05"), e.Room, e.Author, verdict(e.Kind), e.Language, lo.CoalesceOrEmpty(e.Label, "-"), e.Text})
	}
	t.Render()
}
