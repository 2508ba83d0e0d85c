package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/warden/pkg/domain/model"
	"github.com/secmon-lab/warden/pkg/domain/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	raidStateDoc   = "raid"
	bannerStateDoc = "banner"
)

type joinEntryDocument struct {
	UserID   string    `firestore:"user_id"`
	JoinedAt time.Time `firestore:"joined_at"`
}

type raidStateDocument struct {
	Mode           string              `firestore:"mode"`
	RecentJoins    []joinEntryDocument `firestore:"recent_joins"`
	AutoSilence    bool                `firestore:"auto_silence"`
	ManualOverride bool                `firestore:"manual_override"`
}

type bannerStateDocument struct {
	Cursor    int       `firestore:"cursor"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

type stateRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newStateRepository(client *firestore.Client) *stateRepository {
	return &stateRepository{client: client}
}

func (r *stateRepository) collection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_state"
	}
	return "state"
}

func (r *stateRepository) GetRaid(ctx context.Context) (*model.RaidState, error) {
	snap, err := r.client.Collection(r.collection()).Doc(raidStateDoc).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return model.NewRaidState(), nil
		}
		return nil, goerr.Wrap(err, "failed to get raid state")
	}

	var doc raidStateDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode raid state")
	}

	st := &model.RaidState{
		Mode:           types.RaidMode(doc.Mode),
		AutoSilence:    doc.AutoSilence,
		ManualOverride: doc.ManualOverride,
	}
	for _, e := range doc.RecentJoins {
		st.RecentJoins = append(st.RecentJoins, model.JoinEntry{
			User:     types.UserID(e.UserID),
			JoinedAt: e.JoinedAt,
		})
	}
	return st, nil
}

func (r *stateRepository) PutRaid(ctx context.Context, st *model.RaidState) error {
	doc := raidStateDocument{
		Mode:           string(st.Mode),
		AutoSilence:    st.AutoSilence,
		ManualOverride: st.ManualOverride,
	}
	for _, e := range st.RecentJoins {
		doc.RecentJoins = append(doc.RecentJoins, joinEntryDocument{
			UserID:   string(e.User),
			JoinedAt: e.JoinedAt,
		})
	}

	if _, err := r.client.Collection(r.collection()).Doc(raidStateDoc).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to store raid state")
	}
	return nil
}

func (r *stateRepository) GetBanner(ctx context.Context) (*model.BannerState, error) {
	snap, err := r.client.Collection(r.collection()).Doc(bannerStateDoc).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return &model.BannerState{}, nil
		}
		return nil, goerr.Wrap(err, "failed to get banner state")
	}

	var doc bannerStateDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode banner state")
	}
	return &model.BannerState{Cursor: doc.Cursor, UpdatedAt: doc.UpdatedAt}, nil
}

func (r *stateRepository) PutBanner(ctx context.Context, st *model.BannerState) error {
	doc := bannerStateDocument{Cursor: st.Cursor, UpdatedAt: st.UpdatedAt}
	if _, err := r.client.Collection(r.collection()).Doc(bannerStateDoc).Set(ctx, doc); err != nil {
		return goerr.Wrap(err, "failed to store banner state")
	}
	return nil
}
