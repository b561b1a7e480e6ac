// Package smoke verifies a rendered settings file the way the deployed
// smoke-test program does: load, sanity-check, summarize, and report a
// distinct failure class for load versus validation problems.
package smoke

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// Failure classes. Load failures and validation failures map to different
// exit codes at the CLI boundary.
var (
	ErrLoad    = errors.New("settings load failed")
	ErrInvalid = errors.New("settings validation failed")
)

// Settings is the decoded settings.json document.
type Settings map[string]interface{}

// defaultRequiredKeys is the fallback schema when the document does not
// declare its own required_keys list.
var defaultRequiredKeys = []string{"project", "instance", "repos", "secrets"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Load reads and decodes a settings file, accepting UTF-8 with or without
// a byte-order mark. The root must be a JSON object.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: settings file not found: %s", ErrLoad, path)
		}
		return nil, fmt.Errorf("%w: cannot read %s: %v", ErrLoad, path, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON in %s: %v", ErrLoad, path, err)
	}

	settings, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: root of %s must be a JSON object", ErrLoad, path)
	}
	return settings, nil
}

// requiredKeys returns the keys the document must contain. A top-level
// "required_keys" string array overrides the default set; duplicates are
// dropped while preserving order.
func (s Settings) requiredKeys() []string {
	raw, ok := s["required_keys"].([]interface{})
	if !ok {
		return defaultRequiredKeys
	}

	seen := make(map[string]bool)
	var ordered []string
	for _, item := range raw {
		key, ok := item.(string)
		if !ok {
			return defaultRequiredKeys
		}
		if !seen[key] {
			ordered = append(ordered, key)
			seen[key] = true
		}
	}
	if ordered == nil {
		return defaultRequiredKeys
	}
	return ordered
}

// Validate performs the minimal sanity checks the smoke run depends on.
func (s Settings) Validate() error {
	var missing []string
	for _, key := range s.requiredKeys() {
		if _, ok := s[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required keys: %s", ErrInvalid, strings.Join(missing, ", "))
	}

	if raw, ok := s["repos"]; ok {
		repos, ok := raw.([]interface{})
		if !ok {
			return fmt.Errorf("%w: 'repos' must be a list", ErrInvalid)
		}
		for i, item := range repos {
			repo, ok := item.(map[string]interface{})
			if !ok {
				return fmt.Errorf("%w: repos[%d] must be an object", ErrInvalid, i)
			}
			for _, key := range []string{"name", "url"} {
				value, ok := repo[key].(string)
				if !ok || strings.TrimSpace(value) == "" {
					return fmt.Errorf("%w: repos[%d].%s must be a non-empty string", ErrInvalid, i, key)
				}
			}
		}
	}

	if raw, ok := s["secrets"]; ok {
		if _, ok := raw.(map[string]interface{}); !ok {
			return fmt.Errorf("%w: 'secrets' must be an object", ErrInvalid)
		}
	}

	return nil
}

// Summarize prints a concise, stable summary for logs. Secret values are
// never printed, only key names and counts.
func (s Settings) Summarize(w io.Writer) {
	project := stringOr(s["project"], "<unknown>")
	instance := stringOr(s["instance"], "<unknown>")

	fmt.Fprintln(w, "=== ETL Deploy :: Settings Summary ===")
	fmt.Fprintf(w, "Project:  %s\n", project)
	fmt.Fprintf(w, "Instance: %s\n", instance)

	if repos, ok := s["repos"].([]interface{}); ok {
		fmt.Fprintf(w, "Repos:    %d\n", len(repos))
		for _, item := range repos {
			repo, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			name := stringOr(repo["name"], "<noname>")
			url := stringOr(repo["url"], "<nourl>")
			branch := stringOr(repo["branch"], "main")
			fmt.Fprintf(w, "  - %s :: %s @ %s\n", name, url, branch)
		}
	} else if _, present := s["repos"]; present {
		fmt.Fprintln(w, "Repos:    <invalid type>")
	} else {
		fmt.Fprintln(w, "Repos:    0")
	}

	if secrets, ok := s["secrets"].(map[string]interface{}); ok {
		fmt.Fprintf(w, "Secrets:  %d keys\n", len(secrets))
		if len(secrets) > 0 {
			keys := make([]string, 0, len(secrets))
			for key := range secrets {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			fmt.Fprintf(w, "  keys: %s\n", strings.Join(keys, ", "))
		}
	} else if _, present := s["secrets"]; present {
		fmt.Fprintln(w, "Secrets:  <invalid type>")
	} else {
		fmt.Fprintln(w, "Secrets:  0 keys")
	}

	known := map[string]bool{
		"project": true, "instance": true, "repos": true,
		"secrets": true, "required_keys": true,
	}
	var extra []string
	for key := range s {
		if !known[key] {
			extra = append(extra, key)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		fmt.Fprintf(w, "Other keys: %s\n", strings.Join(extra, ", "))
	}

	fmt.Fprintln(w, "=== End Summary ===")
}

// stringOr formats any JSON value as a string, falling back when absent.
func stringOr(value interface{}, fallback string) string {
	if value == nil {
		return fallback
	}
	switch v := value.(type) {
	case string:
		return v
	case float64:
		// JSON numbers decode as float64; instance ids are integers.
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
