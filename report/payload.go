// Package report builds webhook payloads from profiles and delivers them.
package report

import (
	"fmt"
	"strings"

	"xdao.co/sealsweep/model"
)

// MaxEmbeds is the largest number of embeds accepted in one payload.
const MaxEmbeds = 10

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type Embed struct {
	Title       string  `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
}

type AttachmentRef struct {
	ID       int    `json:"id"`
	Filename string `json:"filename"`
}

// Payload is the JSON body posted to the webhook.
type Payload struct {
	Content     *string         `json:"content"`
	Embeds      []Embed         `json:"embeds"`
	Attachments []AttachmentRef `json:"attachments"`
}

// Artifact describes where the output tree was written.
type Artifact struct {
	Path  string
	Files int
	Mode  string
}

// ArtifactEmbed is the designated embed carrying output-tree location and access metadata.
func ArtifactEmbed(a Artifact) Embed {
	return Embed{
		Title: "Output",
		Fields: []Field{
			{Name: "Path", Value: a.Path},
			{Name: "Files", Value: fmt.Sprint(a.Files), Inline: true},
			{Name: "Mode", Value: a.Mode, Inline: true},
		},
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// ProfileEmbed renders one profile. The plaintext value is never included.
func ProfileEmbed(p model.Profile) Embed {
	fields := []Field{
		{Name: "Subject", Value: p.Subject, Inline: true},
		{Name: "Fingerprint", Value: p.Fingerprint},
		{Name: "Flags", Value: dash(strings.Join(p.Flags, ", ")), Inline: true},
		{Name: "Entitlements", Value: dash(strings.Join(p.Entitlements, ", ")), Inline: true},
	}
	if p.Location != "" {
		fields = append(fields, Field{Name: "Location", Value: p.Location})
	}
	return Embed{Title: dash(p.DisplayName), Fields: fields}
}

// Build turns a report into a payload. It fails with PayloadTooLarge when
// the embeds would exceed MaxEmbeds.
func Build(r model.Report, extra ...Embed) (Payload, error) {
	n := len(r.Profiles) + len(extra)
	if n > MaxEmbeds {
		return Payload{}, model.NewError(model.KindDeliveryFailure, model.ReasonPayloadTooLarge,
			fmt.Sprintf("%d embeds exceeds limit %d", n, MaxEmbeds))
	}
	p := Payload{Embeds: make([]Embed, 0, n), Attachments: []AttachmentRef{}}
	if r.Note != "" {
		note := r.Note
		p.Content = &note
	}
	for _, prof := range r.Profiles {
		p.Embeds = append(p.Embeds, ProfileEmbed(prof))
	}
	p.Embeds = append(p.Embeds, extra...)
	if r.Attachment != nil {
		p.Attachments = append(p.Attachments, AttachmentRef{ID: 0, Filename: r.Attachment.Name})
	}
	return p, nil
}

// Batches splits profiles into consecutive chunks of at most n.
func Batches(profiles []model.Profile, n int) [][]model.Profile {
	if n <= 0 {
		n = MaxEmbeds
	}
	var out [][]model.Profile
	for len(profiles) > 0 {
		k := n
		if len(profiles) < k {
			k = len(profiles)
		}
		out = append(out, profiles[:k:k])
		profiles = profiles[k:]
	}
	return out
}
