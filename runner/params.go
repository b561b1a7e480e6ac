package runner

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"
)

// Params holds every path a run touches, derived once from the instance
// identifier before any stage executes. Derivation is pure: the same
// instance always yields the same paths, and distinct instances never
// collide because the identifier is embedded in the project directory name.
type Params struct {
	Instance     int    `json:"instance"`
	ProjectDir   string `json:"project_dir"`
	VenvDir      string `json:"venv_dir"`
	SettingsPath string `json:"settings_path"`

	// Invocation-root artifacts.
	TemplatePath     string `json:"template_path"`
	RequirementsPath string `json:"requirements_path"`
	ScriptPath       string `json:"script_path"`
}

// ResolveParams validates the instance identifier against the allowed set
// (1..MaxInstance) and derives the per-instance filesystem layout.
func ResolveParams(cfg *Config, instance int) (*Params, error) {
	if instance < 1 || instance > cfg.MaxInstance {
		return nil, fmt.Errorf("%w: %d (allowed 1..%d)", ErrInvalidParameter, instance, cfg.MaxInstance)
	}

	projectDir := cfg.resolve(filepath.Join(cfg.BaseDir, cfg.ProjectPrefix+strconv.Itoa(instance)))

	return &Params{
		Instance:         instance,
		ProjectDir:       projectDir,
		VenvDir:          filepath.Join(projectDir, ".venv"),
		SettingsPath:     filepath.Join(projectDir, "settings.json"),
		TemplatePath:     cfg.resolve(cfg.Template),
		RequirementsPath: cfg.resolve(cfg.Requirements),
		ScriptPath:       cfg.resolve(cfg.Entrypoint),
	}, nil
}

// VenvPython returns the interpreter inside the instance's virtual
// environment.
func (p *Params) VenvPython() string {
	return venvPython(p.VenvDir)
}

func venvPython(venvDir string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(venvDir, "Scripts", "python.exe")
	}
	return filepath.Join(venvDir, "bin", "python")
}
