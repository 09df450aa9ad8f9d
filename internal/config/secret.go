package config

import "log/slog"

const redacted = "[redacted]"

// Secret holds a credential. It prints as a fixed placeholder through fmt
// and slog so the value never reaches logs.
type Secret string

func (s Secret) String() string   { return redacted }
func (s Secret) GoString() string { return redacted }

func (s Secret) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

// IsSet reports whether a non-empty credential was supplied.
func (s Secret) IsSet() bool { return s != "" }
