package model

// Record is one sealed envelope as read from disk, tagged with its location.
// Sealed has no meaning until opened with the matching Key.
type Record struct {
	// Root is the installation the record was found under.
	Root     string
	Location string
	KeyID    string
	Sealed   []byte
}

// Key is a per-installation secret loaded from a keyring file.
type Key struct {
	ID    string
	Bytes []byte
}

// Plaintext is an opened record value. It is never mutated once produced.
type Plaintext string

type Profile struct {
	Fingerprint  string            `json:"fingerprint"`
	Subject      string            `json:"subject"`
	DisplayName  string            `json:"displayName,omitempty"`
	Flags        []string          `json:"flags,omitempty"`
	Entitlements []string          `json:"entitlements,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	Location     string            `json:"location,omitempty"`
}

// Attachment is a single binary file sent alongside a report.
type Attachment struct {
	Name  string
	Bytes []byte
}

// Report is built fresh for each delivery.
type Report struct {
	Profiles   []Profile
	Attachment *Attachment
	// Note, when non-empty, becomes the payload's top-level content.
	Note string
}
