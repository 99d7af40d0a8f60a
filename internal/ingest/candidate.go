package ingest

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/emersion/go-message"
	"github.com/sirupsen/logrus"

	"report-mail-ingest/internal/charsetx"
	"report-mail-ingest/internal/mailtime"
	"report-mail-ingest/internal/textutil"
)

// AttachmentPart is one raw attachment lifted from a message: declared
// name plus transfer-decoded bytes.
type AttachmentPart struct {
	Name string
	Data []byte
}

// Candidate is one fetched message normalized for the pipeline: decoded
// subject, bare sender address, merged body, canonical send time, and raw
// attachment parts. It lives from fetch until the record is built or the
// message is skipped.
type Candidate struct {
	Subject     string
	Sender      string
	Body        string
	SendTime    string
	SentAt      time.Time
	Attachments []AttachmentPart
}

// ParseCandidate reads raw RFC822 bytes into a Candidate. Header and body
// bytes go through the charset fallback chain; the Date header goes
// through the canonical time conversion. A message outside the supported
// shapes yields an error and is skipped by the caller.
func ParseCandidate(raw []byte, dec *charsetx.Decoder) (*Candidate, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("read message: %w", err)
	}

	sendTime, err := mailtime.Convert(entity.Header.Get("Date"))
	if err != nil {
		return nil, err
	}
	sentAt, err := mailtime.Parse(sendTime)
	if err != nil {
		return nil, err
	}

	cand := &Candidate{
		Subject:  decodeHeaderValue(entity.Header.Get("Subject"), dec),
		Sender:   textutil.SenderAddress(decodeHeaderValue(entity.Header.Get("From"), dec)),
		SendTime: sendTime,
		SentAt:   sentAt,
	}
	logrus.Infof("message sent %s from %s, subject %q", cand.SendTime, cand.Sender, cand.Subject)

	if err := walkEntity(entity, dec, cand); err != nil {
		return nil, err
	}
	return cand, nil
}

// walkEntity descends multipart trees and folds leaves into the candidate.
func walkEntity(entity *message.Entity, dec *charsetx.Decoder, cand *Candidate) error {
	mr := entity.MultipartReader()
	if mr == nil {
		return collectLeaf(entity, dec, cand)
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return fmt.Errorf("read message part: %w", err)
		}
		if part == nil {
			return nil
		}
		if err := walkEntity(part, dec, cand); err != nil {
			return err
		}
	}
}

// collectLeaf sorts one non-multipart entity into body text or an
// attachment. A text/plain part replaces the body; a text/html part is
// kept only as a fallback or appended after existing text.
func collectLeaf(entity *message.Entity, dec *charsetx.Decoder, cand *Candidate) error {
	mediaType, params := parseContentType(entity.Header.Get("Content-Type"))

	if name := attachmentName(entity, params, dec); name != "" {
		data, err := io.ReadAll(entity.Body)
		if err != nil {
			return fmt.Errorf("read attachment %q: %w", name, err)
		}
		cand.Attachments = append(cand.Attachments, AttachmentPart{Name: name, Data: data})
		logrus.Infof("attachment found: %q (%d bytes)", name, len(data))
		return nil
	}

	switch mediaType {
	case "text/plain", "text/html":
	default:
		return nil
	}

	data, err := io.ReadAll(entity.Body)
	if err != nil {
		return fmt.Errorf("read %s part: %w", mediaType, err)
	}
	text := dec.Decode(data, params["charset"])

	if mediaType == "text/plain" {
		cand.Body = text
		return nil
	}
	if cand.Body == "" {
		cand.Body = text
	} else if text != "" {
		cand.Body = cand.Body + "\n" + text
	}
	return nil
}

func parseContentType(header string) (string, map[string]string) {
	if header == "" {
		return "text/plain", map[string]string{}
	}
	mediaType, params, err := mime.ParseMediaType(header)
	if err != nil {
		return "text/plain", map[string]string{}
	}
	return mediaType, params
}

// attachmentName returns the declared attachment filename, or "" for
// inline content. Both the Content-Type name parameter and the
// Content-Disposition filename are honored.
func attachmentName(entity *message.Entity, ctParams map[string]string, dec *charsetx.Decoder) string {
	if name := ctParams["name"]; name != "" {
		return decodeHeaderValue(name, dec)
	}
	if disp := entity.Header.Get("Content-Disposition"); disp != "" {
		if _, params, err := mime.ParseMediaType(disp); err == nil {
			if name := params["filename"]; name != "" {
				return decodeHeaderValue(name, dec)
			}
		}
	}
	return ""
}

// decodeHeaderValue resolves RFC 2047 encoded words through the charset
// fallback chain. An undecodable header falls back to its raw form rather
// than failing the message.
func decodeHeaderValue(value string, dec *charsetx.Decoder) string {
	wd := mime.WordDecoder{
		CharsetReader: func(charset string, input io.Reader) (io.Reader, error) {
			raw, err := io.ReadAll(input)
			if err != nil {
				return nil, err
			}
			return strings.NewReader(dec.Decode(raw, charset)), nil
		},
	}
	decoded, err := wd.DecodeHeader(value)
	if err != nil {
		logrus.Warnf("header %q not decodable, keeping raw value: %v", value, err)
		return value
	}
	// WordDecoder copies utf-8 payloads through unvalidated, so a header
	// that lies about its charset skips CharsetReader entirely. Send those
	// bytes through the fallback chain like any other undeclared text.
	if !utf8.ValidString(decoded) {
		return dec.Decode([]byte(decoded), "")
	}
	return decoded
}
