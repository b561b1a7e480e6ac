package runner

import (
	"bytes"
	"fmt"
	"os"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// RenderTemplate reads the template as text (tolerating a UTF-8 BOM),
// replaces every literal occurrence of each ${NAME} placeholder, and writes
// the result to outPath as UTF-8 without a BOM. Substitution is literal on
// purpose: placeholder values are never interpreted as patterns.
func RenderTemplate(templatePath, outPath string, vars map[string]string) error {
	data, err := os.ReadFile(templatePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrTemplateNotFound, templatePath)
		}
		return fmt.Errorf("failed to read template %s: %w", templatePath, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	text := string(data)
	for name, value := range vars {
		text = strings.ReplaceAll(text, "${"+name+"}", value)
	}

	if err := os.WriteFile(outPath, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write rendered settings %s: %w", outPath, err)
	}

	return VerifyRendered(outPath)
}

// VerifyRendered re-stats the rendered output. The engine runs unattended,
// so a write that silently produced nothing (permissions, vanished mount)
// must surface here rather than at invocation time.
func VerifyRendered(outPath string) error {
	info, err := os.Stat(outPath)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrRenderVerificationFailed, outPath)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s is empty", ErrRenderVerificationFailed, outPath)
	}
	return nil
}
