package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/doc-control-api/internal/models"
	appErrors "github.com/noah-isme/doc-control-api/pkg/errors"
)

// FlowPredicate decides whether a flow applies to a document.
type FlowPredicate func(doc *models.Document) bool

// AcceptAll applies to every document.
func AcceptAll() FlowPredicate {
	return func(*models.Document) bool { return true }
}

// ByFileType matches the document file type, case-insensitively.
func ByFileType(types ...string) FlowPredicate {
	return matchField(types, func(d *models.Document) string { return d.FileType })
}

// ByProductModel matches the document product model, case-insensitively.
func ByProductModel(productModels ...string) FlowPredicate {
	return matchField(productModels, func(d *models.Document) string { return d.ProductModel })
}

// ByImportance matches the document importance level, case-insensitively.
func ByImportance(levels ...string) FlowPredicate {
	return matchField(levels, func(d *models.Document) string { return d.Importance })
}

// AllOf accepts when every predicate accepts. No predicates accepts everything.
func AllOf(preds ...FlowPredicate) FlowPredicate {
	return func(doc *models.Document) bool {
		for _, p := range preds {
			if !p(doc) {
				return false
			}
		}
		return true
	}
}

// AnyOf accepts when at least one predicate accepts. No predicates accepts everything.
func AnyOf(preds ...FlowPredicate) FlowPredicate {
	if len(preds) == 0 {
		return AcceptAll()
	}
	return func(doc *models.Document) bool {
		for _, p := range preds {
			if p(doc) {
				return true
			}
		}
		return false
	}
}

// PredicateFor builds the predicate described by a flow's applicability.
func PredicateFor(a models.FlowApplicability) FlowPredicate {
	if a.Empty() {
		return AcceptAll()
	}
	var preds []FlowPredicate
	if len(a.FileTypes) > 0 {
		preds = append(preds, ByFileType(a.FileTypes...))
	}
	if len(a.ProductModels) > 0 {
		preds = append(preds, ByProductModel(a.ProductModels...))
	}
	if len(a.Importance) > 0 {
		preds = append(preds, ByImportance(a.Importance...))
	}
	if strings.EqualFold(a.Match, models.MatchAny) {
		return AnyOf(preds...)
	}
	return AllOf(preds...)
}

func matchField(values []string, field func(*models.Document) string) FlowPredicate {
	return func(doc *models.Document) bool {
		got := strings.TrimSpace(field(doc))
		for _, v := range values {
			if strings.EqualFold(strings.TrimSpace(v), got) {
				return true
			}
		}
		return false
	}
}

type flowLister interface {
	ListEnabled(ctx context.Context) ([]models.ApprovalFlow, error)
}

// FlowSelector picks the approval flow for a submitted document.
type FlowSelector struct {
	flows  flowLister
	logger *zap.Logger
}

// NewFlowSelector constructs a FlowSelector.
func NewFlowSelector(flows flowLister, logger *zap.Logger) *FlowSelector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FlowSelector{flows: flows, logger: logger}
}

// Select returns the first enabled flow, by position then creation time,
// whose applicability accepts doc.
func (s *FlowSelector) Select(ctx context.Context, doc *models.Document) (*models.ApprovalFlow, error) {
	flows, err := s.flows.ListEnabled(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval flows")
	}
	for i := range flows {
		flow := &flows[i]
		if !PredicateFor(flow.Applicability)(doc) {
			continue
		}
		if err := ValidateSteps(flow.Steps); err != nil {
			s.logger.Error("selected approval flow is misconfigured", zap.String("flow_id", flow.ID), zap.String("flow_code", flow.Code), zap.Error(err))
			return nil, err
		}
		return flow, nil
	}
	return nil, appErrors.Clone(appErrors.ErrApprovalFlowNotFound, "no enabled approval flow applies to this document")
}
