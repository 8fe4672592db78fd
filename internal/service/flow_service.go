package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/doc-control-api/internal/models"
	appErrors "github.com/noah-isme/doc-control-api/pkg/errors"
)

// FlowDefinition is the on-disk form of an approval flow.
type FlowDefinition struct {
	Code          string                   `yaml:"code"`
	Name          string                   `yaml:"name"`
	Enabled       *bool                    `yaml:"enabled"`
	Position      int                      `yaml:"position"`
	Applicability models.FlowApplicability `yaml:"applicability"`
	Steps         []models.ApprovalStep    `yaml:"steps"`
}

// FlowDefinitionFile pairs a parsed definition with its source path.
type FlowDefinitionFile struct {
	Definition FlowDefinition
	Path       string
}

// ToModel converts the definition to a persistable flow with sorted steps.
func (d FlowDefinition) ToModel() *models.ApprovalFlow {
	enabled := true
	if d.Enabled != nil {
		enabled = *d.Enabled
	}
	steps := make(models.ApprovalSteps, len(d.Steps))
	copy(steps, d.Steps)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })
	applicability := d.Applicability
	if applicability.Match == "" {
		applicability.Match = models.MatchAll
	}
	return &models.ApprovalFlow{
		Code:          d.Code,
		Name:          d.Name,
		Steps:         steps,
		Applicability: applicability,
		Enabled:       enabled,
		Position:      d.Position,
	}
}

// Validate checks the definition header and its steps.
func (d FlowDefinition) Validate() error {
	if strings.TrimSpace(d.Code) == "" {
		return appErrors.Clone(appErrors.ErrApprovalFlowConfig, "flow code is required")
	}
	if strings.TrimSpace(d.Name) == "" {
		return appErrors.Clone(appErrors.ErrApprovalFlowConfig, fmt.Sprintf("flow %s: name is required", d.Code))
	}
	match := strings.ToUpper(d.Applicability.Match)
	if match != "" && match != models.MatchAll && match != models.MatchAny {
		return appErrors.Clone(appErrors.ErrApprovalFlowConfig, fmt.Sprintf("flow %s: unknown match mode %q", d.Code, d.Applicability.Match))
	}
	if err := ValidateSteps(d.Steps); err != nil {
		return appErrors.Clone(appErrors.ErrApprovalFlowConfig, fmt.Sprintf("flow %s: %s", d.Code, appErrors.FromError(err).Message))
	}
	return nil
}

// ValidateSteps rejects empty flows, missing roles, and non-positive or duplicate orders.
func ValidateSteps(steps []models.ApprovalStep) error {
	if len(steps) == 0 {
		return appErrors.Clone(appErrors.ErrApprovalFlowConfig, "approval flow has no steps")
	}
	seen := make(map[int]struct{}, len(steps))
	for _, step := range steps {
		if step.Order <= 0 {
			return appErrors.Clone(appErrors.ErrApprovalFlowConfig, fmt.Sprintf("step order must be positive, got %d", step.Order))
		}
		if _, dup := seen[step.Order]; dup {
			return appErrors.Clone(appErrors.ErrApprovalFlowConfig, fmt.Sprintf("duplicate step order %d", step.Order))
		}
		seen[step.Order] = struct{}{}
		if strings.TrimSpace(step.RoleID) == "" {
			return appErrors.Clone(appErrors.ErrApprovalFlowConfig, fmt.Sprintf("step %d has no role", step.Order))
		}
	}
	return nil
}

// ParseFlowYAML decodes and validates a single flow definition.
func ParseFlowYAML(data []byte) (FlowDefinition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return FlowDefinition{}, appErrors.Clone(appErrors.ErrApprovalFlowConfig, "flow definition is empty")
	}
	var def FlowDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return FlowDefinition{}, appErrors.WithCause(appErrors.ErrApprovalFlowConfig, err, "failed to decode flow definition")
	}
	if err := def.Validate(); err != nil {
		return FlowDefinition{}, err
	}
	return def, nil
}

// LoadFlowDir reads every *.yaml / *.yml file in dir. A missing directory yields no flows.
func LoadFlowDir(dir string) ([]FlowDefinitionFile, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read flows dir %s: %w", trimmed, err)
	}
	var files []FlowDefinitionFile
	codes := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !isYAMLFile(entry.Name()) {
			continue
		}
		path := filepath.Join(trimmed, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read flow %s: %w", path, err)
		}
		def, err := ParseFlowYAML(data)
		if err != nil {
			return nil, fmt.Errorf("flow %s: %w", path, err)
		}
		if other, dup := codes[def.Code]; dup {
			return nil, appErrors.Clone(appErrors.ErrApprovalFlowConfig, fmt.Sprintf("flow code %s defined in both %s and %s", def.Code, other, path))
		}
		codes[def.Code] = path
		files = append(files, FlowDefinitionFile{Definition: def, Path: filepath.Clean(path)})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func isYAMLFile(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}

type flowStore interface {
	Upsert(ctx context.Context, flow *models.ApprovalFlow) error
	DisableExcept(ctx context.Context, codes []string) (int64, error)
}

// FlowService syncs flow definition files into the approval_flows table.
type FlowService struct {
	tx           txRunner
	flows        flowStore
	dir          string
	disableStale bool
	logger       *zap.Logger
}

// NewFlowService constructs a FlowService.
func NewFlowService(tx txRunner, flows flowStore, dir string, disableStale bool, logger *zap.Logger) *FlowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FlowService{tx: tx, flows: flows, dir: dir, disableStale: disableStale, logger: logger}
}

// Sync loads the definition directory and upserts every flow in one transaction.
// Flows missing from the directory are disabled when disableStale is set.
func (s *FlowService) Sync(ctx context.Context) (int, error) {
	files, err := LoadFlowDir(s.dir)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		s.logger.Info("no approval flow definitions found", zap.String("dir", s.dir))
		return 0, nil
	}

	codes := make([]string, 0, len(files))
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, file := range files {
			flow := file.Definition.ToModel()
			if err := s.flows.Upsert(ctx, flow); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store approval flow")
			}
			codes = append(codes, flow.Code)
		}
		if !s.disableStale {
			return nil
		}
		disabled, err := s.flows.DisableExcept(ctx, codes)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to disable stale approval flows")
		}
		if disabled > 0 {
			s.logger.Info("disabled stale approval flows", zap.Int64("count", disabled))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("approval flows synced", zap.Int("count", len(codes)), zap.Strings("codes", codes))
	return len(codes), nil
}
