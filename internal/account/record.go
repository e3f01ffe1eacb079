package account

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultCredits is appended to records whose source line carries no credits field.
const DefaultCredits = "Config by RZX"

// Record is one normalized game account parsed from a single input line.
type Record struct {
	Email    string
	Password string
	UID      string
	ServerID string
	Name     string
	Rank     string
	Level    int
	Country  string
	Banned   bool
	Credits  string
}

// ErrMalformedLine is wrapped by every ParseLine failure.
var ErrMalformedLine = errors.New("malformed account line")

// ParseLine decodes one canonical account line:
//
//	EMAIL:PASSWORD | uid = UID (SERVER_ID) | name = NAME | max_rank = RANK | level = N | country = CC | is_banned = True|False | credits = TEXT
//
// The credits field is optional on input. A failure is returned as an error,
// never a panic; callers are expected to fall back to the repair step.
func ParseLine(line string) (*Record, error) {
	parts := strings.Split(strings.TrimSpace(line), " | ")
	if len(parts) < 7 {
		return nil, fmt.Errorf("%w: got %d fields, want at least 7", ErrMalformedLine, len(parts))
	}

	email, password, ok := strings.Cut(parts[0], ":")
	if !ok || email == "" || password == "" {
		return nil, fmt.Errorf("%w: missing email:password segment", ErrMalformedLine)
	}

	uidFull, err := fieldValue(parts[1], "uid")
	if err != nil {
		return nil, err
	}
	uid, server, ok := strings.Cut(uidFull, "(")
	if !ok {
		return nil, fmt.Errorf("%w: uid %q has no server id", ErrMalformedLine, uidFull)
	}
	uid = strings.TrimSpace(uid)
	serverID := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(server), ")"))
	if uid == "" || serverID == "" {
		return nil, fmt.Errorf("%w: uid %q has no server id", ErrMalformedLine, uidFull)
	}

	name, err := fieldValue(parts[2], "name")
	if err != nil {
		return nil, err
	}
	rank, err := fieldValue(parts[3], "max_rank")
	if err != nil {
		return nil, err
	}
	levelStr, err := fieldValue(parts[4], "level")
	if err != nil {
		return nil, err
	}
	level, err := strconv.Atoi(levelStr)
	if err != nil {
		return nil, fmt.Errorf("%w: level %q is not an integer", ErrMalformedLine, levelStr)
	}
	if level < 0 {
		return nil, fmt.Errorf("%w: level %d is negative", ErrMalformedLine, level)
	}
	country, err := fieldValue(parts[5], "country")
	if err != nil {
		return nil, err
	}
	banned, err := fieldValue(parts[6], "is_banned")
	if err != nil {
		return nil, err
	}

	credits := DefaultCredits
	if len(parts) > 7 {
		credits, err = fieldValue(parts[7], "credits")
		if err != nil {
			return nil, err
		}
	}

	return &Record{
		Email:    email,
		Password: password,
		UID:      uid,
		ServerID: serverID,
		Name:     name,
		Rank:     rank,
		Level:    level,
		Country:  country,
		Banned:   strings.EqualFold(banned, "true"),
		Credits:  credits,
	}, nil
}

// fieldValue extracts VALUE from a "KEY = VALUE" segment, checking the key.
func fieldValue(part, key string) (string, error) {
	k, v, ok := strings.Cut(part, " = ")
	if !ok || strings.TrimSpace(k) != key {
		return "", fmt.Errorf("%w: missing %s field", ErrMalformedLine, key)
	}
	if v == "" {
		return "", fmt.Errorf("%w: empty %s field", ErrMalformedLine, key)
	}
	return v, nil
}

// EncodeLine renders the record back into its canonical line form.
// ParseLine(r.EncodeLine()) reproduces r field for field.
func (r *Record) EncodeLine() string {
	return fmt.Sprintf("%s:%s | uid = %s (%s) | name = %s | max_rank = %s | level = %d | country = %s | is_banned = %s | credits = %s",
		r.Email, r.Password, r.UID, r.ServerID, r.Name, r.Rank, r.Level, r.Country, pyBool(r.Banned), r.Credits)
}

// FormatBlock renders the record as the human-readable block shown during
// review and stored in label files. Label file bookkeeping removes blocks by
// exact comparison, so this rendering must stay byte-for-byte deterministic.
func (r *Record) FormatBlock() string {
	status := "Not Banned"
	if r.Banned {
		status = "Banned"
	}
	return fmt.Sprintf(
		"📧 Email: %s\n"+
			"🔑 Password: %s\n"+
			"👤 Username: %s\n"+
			"🆔 ID: %s (%s)\n"+
			"🎮 Level: %d\n"+
			"🏆 Max Rank: %s\n"+
			"🚫 Status: %s\n"+
			"🌍 Country: %s\n"+
			"📝 Credits: %s",
		r.Email, r.Password, r.Name, r.UID, r.ServerID, r.Level, r.Rank, status, r.Country, r.Credits)
}

// pyBool keeps the input grammar's True/False literals on output.
func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
