// Package deliver sends the result artifact to the requesting user,
// splitting oversized workbooks into parts under the attachment limit.
package deliver

import (
	"fmt"
	"log/slog"

	"docvar/internal/artifact"
)

// MaxAttachmentBytes is the encoded-size threshold above which the
// artifact is split before sending.
const MaxAttachmentBytes = 25 << 20

// MaxParts caps how far a workbook is split.
const MaxParts = 10

// Sender delivers one attachment to one recipient. Implementations do the
// straight-line transport work; the dispatcher owns splitting and per-part
// accounting.
type Sender interface {
	Send(data []byte, recipient, filename, subjectSuffix string) error
}

// NopSender discards attachments. Used when no mail provider is
// configured; results stay on disk in the job directory.
type NopSender struct{}

func (NopSender) Send(data []byte, recipient, filename, subjectSuffix string) error {
	return nil
}

// PartResult is the recorded outcome of one delivery attempt.
type PartResult struct {
	Part  int    `json:"part"`
	Bytes int    `json:"bytes"`
	Sent  bool   `json:"sent"`
	Error string `json:"error,omitempty"`
}

// Summary aggregates per-part outcomes for the job result.
type Summary struct {
	Parts  []PartResult `json:"parts"`
	Sent   int          `json:"sent"`
	Failed int          `json:"failed"`
}

// SplitFunc rewrites an artifact into parts under maxBytes.
type SplitFunc func(data []byte, maxBytes int64, maxParts int) ([][]byte, error)

// Dispatcher sends artifacts, splitting by top-level sheet when the encoded
// payload would exceed the threshold.
type Dispatcher struct {
	sender   Sender
	maxBytes int64
	maxParts int
	split    SplitFunc
	log      *slog.Logger
}

func NewDispatcher(sender Sender, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender:   sender,
		maxBytes: MaxAttachmentBytes,
		maxParts: MaxParts,
		split:    artifact.SplitBySheets,
		log:      log,
	}
}

// Deliver sends the artifact to the recipient. Per-part failures are
// recorded without aborting the remaining parts. If splitting itself
// fails, the unsplit artifact is sent anyway as a last resort so the user
// receives something.
func (d *Dispatcher) Deliver(data []byte, recipient, filename string) Summary {
	if encodedSize(len(data)) <= d.maxBytes {
		return d.sendParts([][]byte{data}, recipient, filename, false)
	}

	parts, err := d.split(data, d.maxBytes, d.maxParts)
	if err != nil {
		d.log.Warn("artifact split failed, sending unsplit", "bytes", len(data), "error", err)
		return d.sendParts([][]byte{data}, recipient, filename, false)
	}
	d.log.Info("artifact split for delivery", "bytes", len(data), "parts", len(parts))
	return d.sendParts(parts, recipient, filename, true)
}

func (d *Dispatcher) sendParts(parts [][]byte, recipient, filename string, numbered bool) Summary {
	var sum Summary
	for i, part := range parts {
		suffix := ""
		if numbered {
			suffix = fmt.Sprintf(" (part %d of %d)", i+1, len(parts))
		}
		res := PartResult{Part: i + 1, Bytes: len(part), Sent: true}
		if err := d.sender.Send(part, recipient, filename, suffix); err != nil {
			d.log.Error("delivery failed", "part", i+1, "recipient", recipient, "error", err)
			res.Sent = false
			res.Error = err.Error()
			sum.Failed++
		} else {
			sum.Sent++
		}
		sum.Parts = append(sum.Parts, res)
	}
	return sum
}

// encodedSize is the base64 length of n raw bytes, which is what the mail
// transport actually carries.
func encodedSize(n int) int64 {
	return int64((n + 2) / 3 * 4)
}
