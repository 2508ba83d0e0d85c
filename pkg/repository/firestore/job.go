package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/warden/pkg/domain/interfaces"
	"github.com/secmon-lab/warden/pkg/domain/model"
	"github.com/secmon-lab/warden/pkg/domain/types"
	"github.com/secmon-lab/warden/pkg/utils/logging"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// jobDocument flattens the action variant into typed fields. ActionType picks
// the variant on decode; unused fields stay zero.
type jobDocument struct {
	ID             string     `firestore:"id"`
	CreatedAt      time.Time  `firestore:"created_at"`
	ExecuteAt      time.Time  `firestore:"execute_at"`
	LastExecutedAt *time.Time `firestore:"last_executed_at"`
	Repeat         string     `firestore:"repeat"`

	ActionType string `firestore:"action_type"`
	RoleID     string `firestore:"role_id,omitempty"`
	UserID     string `firestore:"user_id,omitempty"`
	Reason     string `firestore:"reason,omitempty"`
	ChannelID  string `firestore:"channel_id,omitempty"`
	Content    string `firestore:"content,omitempty"`
	RaidStage  string `firestore:"raid_stage,omitempty"`
}

type jobRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newJobRepository(client *firestore.Client) *jobRepository {
	return &jobRepository{client: client}
}

func (r *jobRepository) collection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_jobs"
	}
	return "jobs"
}

func jobToDocument(job *model.Job) *jobDocument {
	doc := &jobDocument{
		ID:             string(job.ID),
		CreatedAt:      job.CreatedAt,
		ExecuteAt:      job.ExecuteAt,
		LastExecutedAt: job.LastExecutedAt,
		Repeat:         string(job.Repeat),
		ActionType:     string(job.Action.Type()),
	}

	switch a := job.Action.(type) {
	case model.AddRoleAction:
		doc.RoleID = string(a.Role)
		doc.UserID = string(a.User)
		doc.Reason = a.Reason
	case model.RemoveRoleAction:
		doc.RoleID = string(a.Role)
		doc.UserID = string(a.User)
		doc.Reason = a.Reason
	case model.UnbanAction:
		doc.UserID = string(a.User)
	case model.EchoAction:
		doc.ChannelID = string(a.Target)
		doc.Content = a.Content
	case model.RaidDecayAction:
		doc.RaidStage = string(a.Stage)
	}

	return doc
}

func jobToModel(doc *jobDocument) (*model.Job, error) {
	job := &model.Job{
		ID:             types.JobID(doc.ID),
		CreatedAt:      doc.CreatedAt,
		ExecuteAt:      doc.ExecuteAt,
		LastExecutedAt: doc.LastExecutedAt,
		Repeat:         types.RepeatPolicy(doc.Repeat),
	}

	switch types.ActionType(doc.ActionType) {
	case types.ActionAddRole:
		job.Action = model.AddRoleAction{Role: types.RoleID(doc.RoleID), User: types.UserID(doc.UserID), Reason: doc.Reason}
	case types.ActionRemoveRole:
		job.Action = model.RemoveRoleAction{Role: types.RoleID(doc.RoleID), User: types.UserID(doc.UserID), Reason: doc.Reason}
	case types.ActionUnban:
		job.Action = model.UnbanAction{User: types.UserID(doc.UserID)}
	case types.ActionEcho:
		job.Action = model.EchoAction{Target: types.ChannelID(doc.ChannelID), Content: doc.Content}
	case types.ActionBannerRotation:
		job.Action = model.BannerRotationAction{}
	case types.ActionRaidDecay:
		job.Action = model.RaidDecayAction{Stage: types.RaidMode(doc.RaidStage)}
	default:
		return nil, goerr.Wrap(types.ErrFormat, "stored job has unsupported action type",
			goerr.V("jobID", doc.ID), goerr.V("actionType", doc.ActionType))
	}

	return job, nil
}

func (r *jobRepository) Get(ctx context.Context, id types.JobID) (*model.Job, error) {
	snap, err := r.client.Collection(r.collection()).Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(types.ErrJobNotFound, "no such job", goerr.V("jobID", id))
		}
		return nil, goerr.Wrap(err, "failed to get job", goerr.V("jobID", id))
	}

	var doc jobDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode job", goerr.V("jobID", id))
	}
	return jobToModel(&doc)
}

func (r *jobRepository) Put(ctx context.Context, job *model.Job) error {
	if err := job.ID.Validate(); err != nil {
		return goerr.Wrap(err, "cannot store job without ID")
	}

	_, err := r.client.Collection(r.collection()).Doc(string(job.ID)).Set(ctx, jobToDocument(job))
	if err != nil {
		return goerr.Wrap(err, "failed to store job", goerr.V("jobID", job.ID))
	}
	return nil
}

func (r *jobRepository) Delete(ctx context.Context, id types.JobID) error {
	docRef := r.client.Collection(r.collection()).Doc(string(id))

	// Firestore deletes are idempotent, so existence is checked first to keep
	// the absent-job failure contract
	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(types.ErrJobNotFound, "cannot delete absent job", goerr.V("jobID", id))
		}
		return goerr.Wrap(err, "failed to check job before delete", goerr.V("jobID", id))
	}

	if _, err := docRef.Delete(ctx); err != nil {
		return goerr.Wrap(err, "failed to delete job", goerr.V("jobID", id))
	}
	return nil
}

func (r *jobRepository) List(ctx context.Context, pred interfaces.JobPredicate) ([]*model.Job, error) {
	iter := r.client.Collection(r.collection()).OrderBy("execute_at", firestore.Asc).Documents(ctx)
	return r.collect(ctx, iter, pred)
}

func (r *jobRepository) ListDue(ctx context.Context, now time.Time) ([]*model.Job, error) {
	iter := r.client.Collection(r.collection()).
		Where("execute_at", "<=", now).
		OrderBy("execute_at", firestore.Asc).
		Documents(ctx)
	return r.collect(ctx, iter, nil)
}

func (r *jobRepository) collect(ctx context.Context, iter *firestore.DocumentIterator, pred interfaces.JobPredicate) ([]*model.Job, error) {
	defer iter.Stop()

	var docs []*jobDocument
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate jobs")
		}

		var doc jobDocument
		if err := snap.DataTo(&doc); err != nil {
			// one corrupt row must not wedge the listing; the remaining
			// jobs still run
			logging.From(ctx).Warn("skipping undecodable job row",
				"docID", snap.Ref.ID,
				"error", err.Error(),
			)
			continue
		}
		docs = append(docs, &doc)
	}
	return collectJobs(ctx, docs, pred), nil
}

// collectJobs converts decoded rows, dropping any row whose stored action no
// longer maps to a known variant. Dropped rows are reported and stay in the
// collection for inspection.
func collectJobs(ctx context.Context, docs []*jobDocument, pred interfaces.JobPredicate) []*model.Job {
	var jobs []*model.Job
	for _, doc := range docs {
		job, err := jobToModel(doc)
		if err != nil {
			logging.From(ctx).Warn("skipping job row with unsupported action",
				"jobID", doc.ID,
				"actionType", doc.ActionType,
				"error", err.Error(),
			)
			continue
		}
		if pred == nil || pred(job) {
			jobs = append(jobs, job)
		}
	}
	return jobs
}
