package fga

import (
	"context"
	"log/slog"

	openfga "github.com/openfga/go-sdk"
	"github.com/openfga/go-sdk/client"

	"github.com/thaihung110/permission-api/internal/domain"
)

// Store implements domain.RelationshipStore on an OpenFGA store.
type Store struct {
	client *client.OpenFgaClient
	logger *slog.Logger
}

// New connects to an OpenFGA server. The store and model must already
// exist; model management is out of scope for this service.
func New(apiURL, storeID, modelID string, logger *slog.Logger) (*Store, error) {
	cfg := &client.ClientConfiguration{
		ApiUrl:  apiURL,
		StoreId: storeID,
	}
	if modelID != "" {
		cfg.AuthorizationModelId = modelID
	}
	c, err := client.NewSdkClient(cfg)
	if err != nil {
		return nil, domain.ErrUnavailable("openfga client init: %v", err)
	}
	return &Store{
		client: c,
		logger: logger.With("component", "fga"),
	}, nil
}

// Check implements domain.RelationshipStore.
func (s *Store) Check(ctx context.Context, subject domain.Subject, relation domain.Relation, object domain.Object) (bool, error) {
	body := client.ClientCheckRequest{
		User:     storeSubjectRef(subject),
		Relation: string(relation),
		Object:   storeObjectRef(object),
	}
	resp, err := s.client.Check(ctx).Body(body).Execute()
	if err != nil {
		return false, domain.ErrUnavailable("openfga check %s %s %s: %v", body.User, body.Relation, body.Object, err)
	}
	allowed := resp.GetAllowed()
	s.logger.Debug("check",
		"subject", body.User,
		"relation", body.Relation,
		"object", body.Object,
		"allowed", allowed)
	return allowed, nil
}

// Write implements domain.RelationshipStore. Deletes and writes land in
// one transaction, so grant overwrites are atomic.
func (s *Store) Write(ctx context.Context, writes []domain.Tuple, deletes []domain.Tuple) error {
	if len(writes) == 0 && len(deletes) == 0 {
		return nil
	}

	body := client.ClientWriteRequest{}
	for _, t := range writes {
		key := client.ClientTupleKey{
			User:     storeSubjectRef(t.Subject),
			Relation: string(t.Relation),
			Object:   storeObjectRef(t.Object),
		}
		if t.Condition != nil {
			key.Condition = conditionToStore(t.Condition)
		}
		body.Writes = append(body.Writes, key)
	}
	for _, t := range deletes {
		body.Deletes = append(body.Deletes, client.ClientTupleKeyWithoutCondition{
			User:     storeSubjectRef(t.Subject),
			Relation: string(t.Relation),
			Object:   storeObjectRef(t.Object),
		})
	}

	if _, err := s.client.Write(ctx).Body(body).Execute(); err != nil {
		return domain.ErrUnavailable("openfga write (%d writes, %d deletes): %v", len(writes), len(deletes), err)
	}
	s.logger.Info("tuples written", "writes", len(writes), "deletes", len(deletes))
	return nil
}

// Read implements domain.RelationshipStore.
func (s *Store) Read(ctx context.Context, filter domain.TupleFilter) ([]domain.Tuple, error) {
	body := client.ClientReadRequest{}
	if filter.Subject != nil {
		body.User = openfga.PtrString(storeSubjectRef(*filter.Subject))
	}
	if filter.Relation != "" {
		body.Relation = openfga.PtrString(string(filter.Relation))
	}
	switch {
	case filter.Object != nil:
		body.Object = openfga.PtrString(storeObjectRef(*filter.Object))
	case filter.ObjectKind != "":
		// Type-only pattern: "<type>:" matches every object of the type.
		body.Object = openfga.PtrString(storeKind(filter.ObjectKind) + ":")
	}

	resp, err := s.client.Read(ctx).Body(body).Execute()
	if err != nil {
		return nil, domain.ErrUnavailable("openfga read: %v", err)
	}

	tuples := make([]domain.Tuple, 0, len(resp.GetTuples()))
	for _, t := range resp.GetTuples() {
		key := t.GetKey()
		subject, err := apiSubjectRef(key.GetUser())
		if err != nil {
			s.logger.Warn("skipping tuple with unparseable subject", "subject", key.GetUser())
			continue
		}
		object, err := apiObjectRef(key.GetObject())
		if err != nil {
			s.logger.Warn("skipping tuple with unparseable object", "object", key.GetObject())
			continue
		}
		tuple := domain.Tuple{
			Subject:  subject,
			Relation: domain.Relation(key.GetRelation()),
			Object:   object,
		}
		if cond, ok := key.GetConditionOk(); ok && cond != nil {
			tuple.Condition = conditionFromStore(cond)
		}
		tuples = append(tuples, tuple)
	}
	return tuples, nil
}

// ListObjects implements domain.RelationshipStore. Returned refs use
// the API vocabulary.
func (s *Store) ListObjects(ctx context.Context, subject domain.Subject, relation domain.Relation, kind domain.ObjectKind) ([]string, error) {
	body := client.ClientListObjectsRequest{
		User:     storeSubjectRef(subject),
		Relation: string(relation),
		Type:     storeKind(kind),
	}
	resp, err := s.client.ListObjects(ctx).Body(body).Execute()
	if err != nil {
		return nil, domain.ErrUnavailable("openfga list objects %s %s %s: %v", body.User, body.Relation, body.Type, err)
	}

	refs := make([]string, 0, len(resp.GetObjects()))
	for _, ref := range resp.GetObjects() {
		obj, err := apiObjectRef(ref)
		if err != nil {
			s.logger.Warn("skipping unparseable object ref", "ref", ref)
			continue
		}
		refs = append(refs, obj.Ref())
	}
	return refs, nil
}

// Ping implements domain.RelationshipStore.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.GetStore(ctx).Execute(); err != nil {
		return domain.ErrUnavailable("openfga unreachable: %v", err)
	}
	return nil
}

func conditionToStore(c *domain.Condition) *openfga.RelationshipCondition {
	values := make([]interface{}, len(c.AllowedValues))
	for i, v := range c.AllowedValues {
		values[i] = v
	}
	ctx := map[string]interface{}{
		"attribute_name": c.AttributeName,
		"allowed_values": values,
	}
	return &openfga.RelationshipCondition{
		Name:    c.Name,
		Context: &ctx,
	}
}

func conditionFromStore(rc *openfga.RelationshipCondition) *domain.Condition {
	cond := &domain.Condition{Name: rc.GetName()}
	if rc.Context == nil {
		return cond
	}
	ctx := *rc.Context
	if name, ok := ctx["attribute_name"].(string); ok {
		cond.AttributeName = name
	}
	if raw, ok := ctx["allowed_values"].([]interface{}); ok {
		for _, v := range raw {
			if sv, ok := v.(string); ok {
				cond.AllowedValues = append(cond.AllowedValues, sv)
			}
		}
	}
	return cond
}
