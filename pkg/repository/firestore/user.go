package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/warden/pkg/domain/model"
	"github.com/secmon-lab/warden/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type userDocument struct {
	ID                string      `firestore:"id"`
	Aliases           []string    `firestore:"aliases"`
	Joins             []time.Time `firestore:"joins"`
	Pressure          float64     `firestore:"pressure"`
	PressureUpdatedAt time.Time   `firestore:"pressure_updated_at"`
	LastMessage       string      `firestore:"last_message"`
	Silenced          bool        `firestore:"silenced"`
	ReapplyRoles      []string    `firestore:"reapply_roles"`
}

type userRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newUserRepository(client *firestore.Client) *userRepository {
	return &userRepository{client: client}
}

func (r *userRepository) collection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_users"
	}
	return "users"
}

func userToDocument(rec *model.UserRecord) *userDocument {
	doc := &userDocument{
		ID:                string(rec.ID),
		Aliases:           rec.Aliases,
		Joins:             rec.Joins,
		Pressure:          rec.Pressure,
		PressureUpdatedAt: rec.PressureUpdatedAt,
		LastMessage:       rec.LastMessage,
		Silenced:          rec.Silenced,
	}
	for _, role := range rec.ReapplyRoles {
		doc.ReapplyRoles = append(doc.ReapplyRoles, string(role))
	}
	return doc
}

func userToModel(doc *userDocument) *model.UserRecord {
	rec := &model.UserRecord{
		ID:                types.UserID(doc.ID),
		Aliases:           doc.Aliases,
		Joins:             doc.Joins,
		Pressure:          doc.Pressure,
		PressureUpdatedAt: doc.PressureUpdatedAt,
		LastMessage:       doc.LastMessage,
		Silenced:          doc.Silenced,
	}
	for _, role := range doc.ReapplyRoles {
		rec.ReapplyRoles = append(rec.ReapplyRoles, types.RoleID(role))
	}
	return rec
}

func (r *userRepository) Get(ctx context.Context, id types.UserID) (*model.UserRecord, error) {
	snap, err := r.client.Collection(r.collection()).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(types.ErrUserNotFound, "no record for user", goerr.V("userID", id))
		}
		return nil, goerr.Wrap(err, "failed to get user record", goerr.V("userID", id))
	}

	var doc userDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode user record", goerr.V("userID", id))
	}
	return userToModel(&doc), nil
}

func (r *userRepository) Put(ctx context.Context, rec *model.UserRecord) error {
	if err := rec.ID.Validate(); err != nil {
		return goerr.Wrap(err, "cannot store user record without ID")
	}

	_, err := r.client.Collection(r.collection()).Doc(string(rec.ID)).Set(ctx, userToDocument(rec))
	if err != nil {
		return goerr.Wrap(err, "failed to store user record", goerr.V("userID", rec.ID))
	}
	return nil
}

func (r *userRepository) List(ctx context.Context) ([]*model.UserRecord, error) {
	iter := r.client.Collection(r.collection()).OrderBy("id", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var records []*model.UserRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate user records")
		}

		var doc userDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode user record")
		}
		records = append(records, userToModel(&doc))
	}
	return records, nil
}
