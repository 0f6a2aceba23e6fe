package audit

import (
	"encoding/xml"
	"fmt"
	"os"
)

// userCommand is the XML shape of one dumped event, matching the
// legacy workload log format.
type userCommand struct {
	XMLName        xml.Name `xml:"userCommand"`
	Timestamp      int64    `xml:"timestamp"`
	Server         string   `xml:"server"`
	TransactionNum int64    `xml:"transactionNum"`
	Command        string   `xml:"command"`
	Username       string   `xml:"username,omitempty"`
	Params         string   `xml:"params,omitempty"`
	Outcome        string   `xml:"outcome"`
}

type logFile struct {
	XMLName xml.Name `xml:"log"`
	Entries []userCommand
}

// Dump writes the event log as XML to filename, filtered to one user
// when userID is non-empty.
func (l *Log) Dump(filename, userID string) error {
	events := l.Events(userID)
	doc := logFile{Entries: make([]userCommand, 0, len(events))}
	for _, e := range events {
		doc.Entries = append(doc.Entries, userCommand{
			Timestamp:      e.When.UnixMilli(),
			Server:         l.server,
			TransactionNum: e.Seq,
			Command:        e.Command,
			Username:       e.UserID,
			Params:         e.Params,
			Outcome:        e.Outcome,
		})
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create dumplog file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(xml.Header); err != nil {
		return fmt.Errorf("write dumplog: %w", err)
	}
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode dumplog: %w", err)
	}
	if _, err := f.WriteString("\n"); err != nil {
		return fmt.Errorf("write dumplog: %w", err)
	}
	return nil
}
