// Package history records the protocol traffic of a console session.
package history

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// Direction represents the direction of data flow
type Direction int

const (
	DirectionInbound Direction = iota
	DirectionOutbound
)

// String returns the string representation of Direction
func (d Direction) String() string {
	switch d {
	case DirectionInbound:
		return "in"
	case DirectionOutbound:
		return "out"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Direction) UnmarshalText(text []byte) error {
	switch string(text) {
	case "in":
		*d = DirectionInbound
	case "out":
		*d = DirectionOutbound
	default:
		return fmt.Errorf("invalid direction: %q", text)
	}
	return nil
}

// FileFormat represents different file export formats
type FileFormat int

const (
	FormatPlainText FileFormat = iota
	FormatTimestamped
	FormatJSON
)

// String returns the string representation of FileFormat
func (f FileFormat) String() string {
	switch f {
	case FormatPlainText:
		return "plain_text"
	case FormatTimestamped:
		return "timestamped"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

// ParseFormat parses a format name as accepted on the command line.
func ParseFormat(name string) (FileFormat, error) {
	switch strings.ToLower(name) {
	case "plain", "plain_text", "text":
		return FormatPlainText, nil
	case "timestamped", "ts":
		return FormatTimestamped, nil
	case "json":
		return FormatJSON, nil
	default:
		return 0, fmt.Errorf("unknown recording format %q", name)
	}
}

// CompressedSuffix marks recordings written with zstd.
const CompressedSuffix = ".zst"

// DefaultMaxEntries is the ring size used when none is given.
const DefaultMaxEntries = 100000

// Entry is one protocol message that crossed the link.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Direction Direction `json:"direction"`
	Payload   []byte    `json:"-"`
}

// Validate checks if the entry is valid
func (e Entry) Validate() error {
	if e.Timestamp.IsZero() {
		return fmt.Errorf("timestamp cannot be zero")
	}

	if e.Direction != DirectionInbound && e.Direction != DirectionOutbound {
		return fmt.Errorf("invalid direction: %d", e.Direction)
	}

	if e.Payload == nil {
		return fmt.Errorf("payload cannot be nil")
	}

	return nil
}

// NewEntry creates a new entry with current timestamp
func NewEntry(payload []byte, direction Direction) Entry {
	payloadCopy := make([]byte, len(payload))
	copy(payloadCopy, payload)
	return Entry{
		Timestamp: time.Now(),
		Direction: direction,
		Payload:   payloadCopy,
	}
}

// jsonEntry is the on-disk form of an Entry. Valid JSON payloads are
// embedded as-is; anything else (a malformed inbound message) is kept as a
// string.
type jsonEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Direction Direction       `json:"direction"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Raw       string          `json:"raw,omitempty"`
}

func (e Entry) toJSON() jsonEntry {
	out := jsonEntry{Timestamp: e.Timestamp, Direction: e.Direction}
	if json.Valid(e.Payload) {
		out.Payload = json.RawMessage(e.Payload)
	} else {
		out.Raw = string(e.Payload)
	}
	return out
}

func (j jsonEntry) toEntry() Entry {
	payload := []byte(j.Raw)
	if len(j.Payload) > 0 {
		// The indented document re-indents embedded payloads.
		var compact bytes.Buffer
		if err := json.Compact(&compact, j.Payload); err == nil {
			payload = compact.Bytes()
		} else {
			payload = []byte(j.Payload)
		}
	}
	return Entry{Timestamp: j.Timestamp, Direction: j.Direction, Payload: payload}
}

// Stats provides statistics about the recording
type Stats struct {
	SessionID       string     `json:"session_id"`
	TotalEntries    int        `json:"total_entries"`
	InboundEntries  int        `json:"inbound_entries"`
	OutboundEntries int        `json:"outbound_entries"`
	InboundBytes    int        `json:"inbound_bytes"`
	OutboundBytes   int        `json:"outbound_bytes"`
	Evicted         int        `json:"evicted"`
	MaxEntries      int        `json:"max_entries"`
	OldestEntry     *time.Time `json:"oldest_entry,omitempty"`
	NewestEntry     *time.Time `json:"newest_entry,omitempty"`
}

// Recorder keeps the most recent protocol messages in a ring buffer. It is
// safe for concurrent use: the receive loop and the UI goroutine both
// record.
type Recorder struct {
	sessionID string
	started   time.Time

	entries    []Entry
	maxEntries int
	entryStart int
	entryCount int
	evicted    int

	mu sync.Mutex
}

// NewRecorder creates a recorder holding up to maxEntries messages.
func NewRecorder(maxEntries int) *Recorder {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	return &Recorder{
		sessionID:  uuid.NewString(),
		started:    time.Now(),
		entries:    make([]Entry, maxEntries),
		maxEntries: maxEntries,
	}
}

// SessionID identifies the recording.
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// Record adds a message. The oldest message is evicted when the ring is
// full.
func (r *Recorder) Record(payload []byte, direction Direction) error {
	if payload == nil {
		return fmt.Errorf("payload cannot be nil")
	}

	if direction != DirectionInbound && direction != DirectionOutbound {
		return fmt.Errorf("invalid direction: %d", direction)
	}

	entry := NewEntry(payload, direction)

	r.mu.Lock()
	defer r.mu.Unlock()

	pos := (r.entryStart + r.entryCount) % r.maxEntries
	r.entries[pos] = entry
	if r.entryCount < r.maxEntries {
		r.entryCount++
	} else {
		r.entryStart = (r.entryStart + 1) % r.maxEntries
		r.evicted++
	}

	return nil
}

// Len returns the number of messages held.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.entryCount
}

// Entries returns up to count messages starting at start, oldest first.
func (r *Recorder) Entries(start, count int) ([]Entry, error) {
	if start < 0 {
		return nil, fmt.Errorf("start cannot be negative")
	}

	if count < 0 {
		return nil, fmt.Errorf("count cannot be negative")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.entriesLocked(start, count), nil
}

func (r *Recorder) entriesLocked(start, count int) []Entry {
	if start >= r.entryCount {
		return []Entry{}
	}

	if start+count > r.entryCount {
		count = r.entryCount - start
	}

	result := make([]Entry, count)
	for i := 0; i < count; i++ {
		result[i] = r.entries[(r.entryStart+start+i)%r.maxEntries]
	}
	return result
}

// Clear drops every recorded message.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.entries {
		r.entries[i] = Entry{}
	}
	r.entryStart = 0
	r.entryCount = 0
	r.evicted = 0
}

// Stats returns statistics about the recording
func (r *Recorder) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := Stats{
		SessionID:    r.sessionID,
		TotalEntries: r.entryCount,
		Evicted:      r.evicted,
		MaxEntries:   r.maxEntries,
	}

	for i, entry := range r.entriesLocked(0, r.entryCount) {
		switch entry.Direction {
		case DirectionInbound:
			stats.InboundEntries++
			stats.InboundBytes += len(entry.Payload)
		case DirectionOutbound:
			stats.OutboundEntries++
			stats.OutboundBytes += len(entry.Payload)
		}

		if i == 0 {
			oldest := entry.Timestamp
			stats.OldestEntry = &oldest
		}
		newest := entry.Timestamp
		stats.NewestEntry = &newest
	}

	return stats
}

// SaveToFile writes the recording to filename. A ".zst" suffix compresses
// the output with zstd.
func (r *Recorder) SaveToFile(filename string, format FileFormat) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	var w io.Writer = file
	var encoder *zstd.Encoder
	if strings.HasSuffix(filename, CompressedSuffix) {
		encoder, err = zstd.NewWriter(file)
		if err != nil {
			return fmt.Errorf("failed to start compression: %w", err)
		}
		w = encoder
	}

	if err := r.WriteTo(w, format); err != nil {
		if encoder != nil {
			encoder.Close()
		}
		return err
	}

	if encoder != nil {
		if err := encoder.Close(); err != nil {
			return fmt.Errorf("failed to finish compression: %w", err)
		}
	}
	return file.Close()
}

// WriteTo writes the recording to w in the given format.
func (r *Recorder) WriteTo(w io.Writer, format FileFormat) error {
	r.mu.Lock()
	entries := r.entriesLocked(0, r.entryCount)
	r.mu.Unlock()

	bw := bufio.NewWriter(w)

	var err error
	switch format {
	case FormatPlainText:
		err = writePlainText(bw, entries)
	case FormatTimestamped:
		err = writeTimestamped(bw, r.sessionID, entries)
	case FormatJSON:
		err = writeJSON(bw, r.sessionID, r.started, entries)
	default:
		return fmt.Errorf("unsupported format: %v", format)
	}
	if err != nil {
		return err
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush recording: %w", err)
	}
	return nil
}

// writePlainText writes one payload per line
func writePlainText(w *bufio.Writer, entries []Entry) error {
	for _, entry := range entries {
		if _, err := w.Write(entry.Payload); err != nil {
			return fmt.Errorf("failed to write data: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write data: %w", err)
		}
	}
	return nil
}

// writeTimestamped writes entries with timestamps and direction arrows
func writeTimestamped(w *bufio.Writer, sessionID string, entries []Entry) error {
	if _, err := fmt.Fprintf(w, "# session %s\n", sessionID); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, entry := range entries {
		direction := "<<"
		if entry.Direction == DirectionOutbound {
			direction = ">>"
		}

		line := fmt.Sprintf("[%s] %s %s\n",
			entry.Timestamp.Format("2006-01-02 15:04:05.000"),
			direction,
			strings.ReplaceAll(string(entry.Payload), "\n", "\\n"))

		if _, err := w.WriteString(line); err != nil {
			return fmt.Errorf("failed to write timestamped data: %w", err)
		}
	}
	return nil
}

// recordingFile is the JSON recording document
type recordingFile struct {
	SessionID string      `json:"session_id"`
	Started   time.Time   `json:"started"`
	Count     int         `json:"count"`
	Entries   []jsonEntry `json:"entries"`
}

// writeJSON writes entries as one indented JSON document
func writeJSON(w *bufio.Writer, sessionID string, started time.Time, entries []Entry) error {
	doc := recordingFile{
		SessionID: sessionID,
		Started:   started,
		Count:     len(entries),
		Entries:   make([]jsonEntry, len(entries)),
	}
	for i, entry := range entries {
		doc.Entries[i] = entry.toJSON()
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

// Recording is a JSON recording read back from disk.
type Recording struct {
	SessionID string
	Started   time.Time
	Entries   []Entry
}

// Inbound returns the payloads the server sent, in order.
func (r *Recording) Inbound() [][]byte {
	var out [][]byte
	for _, entry := range r.Entries {
		if entry.Direction == DirectionInbound {
			out = append(out, entry.Payload)
		}
	}
	return out
}

// LoadFile reads a JSON recording, compressed or not.
func LoadFile(filename string) (*Recording, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open recording: %w", err)
	}
	defer file.Close()

	var r io.Reader = file
	if strings.HasSuffix(filename, CompressedSuffix) {
		decoder, err := zstd.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("failed to start decompression: %w", err)
		}
		defer decoder.Close()
		r = decoder
	}

	return Load(r)
}

// Load reads a JSON recording from r.
func Load(r io.Reader) (*Recording, error) {
	var doc recordingFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse recording: %w", err)
	}

	recording := &Recording{
		SessionID: doc.SessionID,
		Started:   doc.Started,
		Entries:   make([]Entry, 0, len(doc.Entries)),
	}
	for i, je := range doc.Entries {
		entry := je.toEntry()
		if err := entry.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		recording.Entries = append(recording.Entries, entry)
	}
	return recording, nil
}
