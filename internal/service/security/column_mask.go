package security

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/thaihung110/permission-api/internal/domain"
)

// MaskExpression replaces masked column values in query results.
const MaskExpression = "'*****'"

// MaskedColumn is one batch result entry: the filter resource at Index
// must be masked with Expression.
type MaskedColumn struct {
	Index      int
	Expression string
}

// ColumnMaskService resolves which columns are masked for a subject.
type ColumnMaskService struct {
	store       domain.RelationshipStore
	concurrency int
	logger      *slog.Logger
}

// NewColumnMaskService creates a new ColumnMaskService. concurrency
// bounds the per-request check fan-out.
func NewColumnMaskService(store domain.RelationshipStore, concurrency int, logger *slog.Logger) *ColumnMaskService {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &ColumnMaskService{
		store:       store,
		concurrency: concurrency,
		logger:      logger.With("component", "columnmask"),
	}
}

// ResolveMasks decides, per column, whether it is masked for the
// subject. Group memberships asserted by the caller are verified
// against the store before use; when none verify the whole batch
// resolves to no visibility, so the result is empty regardless of any
// direct mask tuples. Item failures degrade to "not masked" without
// aborting the batch.
func (s *ColumnMaskService) ResolveMasks(ctx context.Context, subject domain.Subject, groups []string, columns []domain.Object) []MaskedColumn {
	verified := s.verifiedGroups(ctx, subject, groups)
	if len(verified) == 0 {
		s.logger.Info("no verified group membership, masking nothing",
			"subject", subject.Ref(), "asserted", len(groups))
		return nil
	}

	var (
		mu      sync.Mutex
		entries []MaskedColumn
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, column := range columns {
		i, column := i, column
		g.Go(func() error {
			if column.Kind != domain.KindColumn {
				return nil
			}
			if s.isMasked(gctx, subject, verified, column) {
				mu.Lock()
				entries = append(entries, MaskedColumn{Index: i, Expression: MaskExpression})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait() // items never return errors

	sort.Slice(entries, func(a, b int) bool { return entries[a].Index < entries[b].Index })
	return entries
}

// Grant puts a mask on the column for subject. Mask is column-specific
// and never inherited, so the target must be a column.
func (s *ColumnMaskService) Grant(ctx context.Context, subject domain.Subject, spec domain.ResourceSpec) (domain.Object, error) {
	column, err := maskTarget(spec)
	if err != nil {
		return domain.Object{}, err
	}
	tuple := domain.Tuple{Subject: subject, Relation: domain.RelationMask, Object: column}
	if err := overwrite(ctx, s.store, tuple); err != nil {
		return domain.Object{}, err
	}
	s.logger.Info("column mask granted", "subject", subject.Ref(), "column", column.Path())
	return column, nil
}

// Revoke removes a mask from the column for subject.
func (s *ColumnMaskService) Revoke(ctx context.Context, subject domain.Subject, spec domain.ResourceSpec) (domain.Object, error) {
	column, err := maskTarget(spec)
	if err != nil {
		return domain.Object{}, err
	}
	tuple := domain.Tuple{Subject: subject, Relation: domain.RelationMask, Object: column}
	existing, err := readExisting(ctx, s.store, tuple)
	if err != nil {
		return domain.Object{}, err
	}
	if existing == nil {
		return domain.Object{}, domain.ErrNotFound("no mask grant for %s on %s",
			subject.Ref(), column.Ref())
	}
	if err := s.store.Write(ctx, nil, []domain.Tuple{tuple}); err != nil {
		return domain.Object{}, err
	}
	s.logger.Info("column mask revoked", "subject", subject.Ref(), "column", column.Path())
	return column, nil
}

// MaskedColumns lists the column names of table that carry a direct
// mask grant for subject.
func (s *ColumnMaskService) MaskedColumns(ctx context.Context, subject domain.Subject, table domain.Object) ([]string, error) {
	tuples, err := s.store.Read(ctx, domain.TupleFilter{
		Subject:    &subject,
		Relation:   domain.RelationMask,
		ObjectKind: domain.KindColumn,
	})
	if err != nil {
		return nil, err
	}

	var names []string
	for _, t := range tuples {
		if t.Object.Kind != domain.KindColumn {
			continue
		}
		owner, err := t.Object.OwningTable()
		if err != nil || owner != table {
			continue
		}
		names = append(names, t.Object.Column)
	}
	return names, nil
}

func maskTarget(spec domain.ResourceSpec) (domain.Object, error) {
	if spec.Column == "" {
		return domain.Object{}, domain.ErrValidation("column mask requires a column in the resource")
	}
	target, err := domain.BuildTarget("", spec)
	if err != nil {
		return domain.Object{}, err
	}
	return target, nil
}

// verifiedGroups filters the caller's asserted groups down to those the
// store confirms the subject is a member of.
func (s *ColumnMaskService) verifiedGroups(ctx context.Context, subject domain.Subject, groups []string) []string {
	verified := make([]string, 0, len(groups))
	for _, group := range groups {
		if group == "" {
			continue
		}
		tenant := domain.Object{Kind: domain.KindTenant, Name: group}
		ok, err := s.store.Check(ctx, subject, domain.RelationMember, tenant)
		if err != nil {
			s.logger.Warn("membership verification failed",
				"subject", subject.Ref(), "tenant", group, "error", err)
			continue
		}
		if ok {
			verified = append(verified, group)
		}
	}
	return verified
}

// isMasked checks direct mask first, then each verified tenant's
// member userset. First success wins.
func (s *ColumnMaskService) isMasked(ctx context.Context, subject domain.Subject, groups []string, column domain.Object) bool {
	masked, err := s.store.Check(ctx, subject, domain.RelationMask, column)
	if err != nil {
		s.logger.Warn("mask check failed, treating as unmasked",
			"column", column.Path(), "error", err)
		return false
	}
	if masked {
		return true
	}

	for _, group := range groups {
		masked, err := s.store.Check(ctx, domain.TenantSubject(group), domain.RelationMask, column)
		if err != nil {
			s.logger.Warn("group mask check failed",
				"tenant", group, "column", column.Path(), "error", err)
			continue
		}
		if masked {
			return true
		}
	}
	return false
}
