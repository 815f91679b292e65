// Package mongo persists reports and users in MongoDB.
//
// Reports and users carry 2dsphere indexes on their GeoJSON locations.
// Multi-document writes run in transactions, so the deployment must be a
// replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/couchcryptid/outage-verify-service/internal/domain"
)

const (
	reportsCollection = "reports"
	usersCollection   = "users"
)

// Store implements lifecycle.Store on a MongoDB database.
type Store struct {
	client  *mongo.Client
	reports *mongo.Collection
	users   *mongo.Collection
}

// Connect dials uri and verifies the connection with a ping.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.Connect ping: %w", err)
	}
	return NewStore(client, database), nil
}

// NewStore wraps an existing client.
func NewStore(client *mongo.Client, database string) *Store {
	db := client.Database(database)
	return &Store{
		client:  client,
		reports: db.Collection(reportsCollection),
		users:   db.Collection(usersCollection),
	}
}

// EnsureIndexes creates the geospatial and lookup indexes. It is idempotent.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.reports.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "reported_at", Value: -1}}},
		{Keys: bson.D{{Key: "reporter_id", Value: 1}, {Key: "reported_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo.EnsureIndexes reports: %w", err)
	}
	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "home_location", Value: "2dsphere"}},
	})
	if err != nil {
		return fmt.Errorf("mongo.EnsureIndexes users: %w", err)
	}
	return nil
}

// Ping checks the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) FindReport(ctx context.Context, id string) (*domain.Report, error) {
	var doc reportDoc
	err := s.reports.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("mongo.FindReport %s: %w", id, domain.ErrReportNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("mongo.FindReport %s: %w", id, err)
	}
	return doc.report(), nil
}

func (s *Store) FindUser(ctx context.Context, id string) (domain.UserTrust, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.UserTrust{}, fmt.Errorf("mongo.FindUser %s: %w", id, domain.ErrUserNotFound)
	}
	if err != nil {
		return domain.UserTrust{}, fmt.Errorf("mongo.FindUser %s: %w", id, err)
	}
	return doc.user(), nil
}

func (s *Store) CreateUser(ctx context.Context, u domain.UserTrust) error {
	_, err := s.users.InsertOne(ctx, toUserDoc(u))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("mongo.CreateUser %s: %w", u.ID, domain.ErrUserExists)
	}
	if err != nil {
		return fmt.Errorf("mongo.CreateUser %s: %w", u.ID, err)
	}
	return nil
}

// CreateReport records the submission on the reporter with a conditional
// update and inserts the report, both in one transaction. Concurrent
// submissions by one user conflict on the user document; the retried
// transaction then fails the cooldown condition.
func (s *Store) CreateReport(ctx context.Context, r *domain.Report, notBefore time.Time) error {
	doc := toReportDoc(r)
	doc.Version = 1

	err := s.transact(ctx, func(sc mongo.SessionContext) error {
		res, err := s.users.UpdateOne(sc,
			bson.D{
				{Key: "_id", Value: r.ReporterID},
				{Key: "last_report_at", Value: bson.D{{Key: "$not", Value: bson.D{{Key: "$gte", Value: notBefore}}}}},
			},
			bson.D{
				{Key: "$set", Value: bson.D{{Key: "last_report_at", Value: r.ReportedAt}}},
				{Key: "$inc", Value: bson.D{{Key: "total_reports", Value: 1}}},
			},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return s.missingOr(sc, s.users, r.ReporterID, domain.ErrUserNotFound, domain.ErrCooldown)
		}

		_, err = s.reports.InsertOne(sc, doc)
		return err
	})
	if err != nil {
		return fmt.Errorf("mongo.CreateReport %s: %w", r.ID, err)
	}
	r.Version = doc.Version
	return nil
}

// UpdateReport replaces the report if its version is unchanged and credits
// the reward in the same transaction.
func (s *Store) UpdateReport(ctx context.Context, r *domain.Report, expectedVersion int64, reward *domain.Reward) error {
	doc := toReportDoc(r)
	doc.Version = expectedVersion + 1

	err := s.transact(ctx, func(sc mongo.SessionContext) error {
		res, err := s.reports.ReplaceOne(sc,
			bson.D{{Key: "_id", Value: r.ID}, {Key: "version", Value: expectedVersion}},
			doc,
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return s.missingOr(sc, s.reports, r.ID, domain.ErrReportNotFound, domain.ErrVersionConflict)
		}
		if reward == nil {
			return nil
		}
		return s.applyReward(sc, *reward)
	})
	if err != nil {
		return fmt.Errorf("mongo.UpdateReport %s: %w", r.ID, err)
	}
	r.Version = doc.Version
	return nil
}

func (s *Store) applyReward(ctx mongo.SessionContext, rw domain.Reward) error {
	score := bson.D{{Key: "$min", Value: bson.A{
		rw.Cap,
		bson.D{{Key: "$max", Value: bson.A{
			0,
			bson.D{{Key: "$add", Value: bson.A{"$credibility_score", rw.Points}}},
		}}},
	}}}
	res, err := s.users.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: rw.UserID}},
		mongo.Pipeline{{{Key: "$set", Value: bson.D{
			{Key: "credibility_score", Value: score},
			{Key: "accurate_reports", Value: bson.D{{Key: "$add", Value: bson.A{"$accurate_reports", 1}}}},
		}}}},
	)
	if err != nil {
		return fmt.Errorf("reward %s: %w", rw.UserID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("reward %s: %w", rw.UserID, domain.ErrUserNotFound)
	}
	return nil
}

func (s *Store) Nearby(ctx context.Context, center domain.Point, radiusMeters float64, limit int) ([]*domain.Report, error) {
	filter := bson.D{
		{Key: "status", Value: bson.D{{Key: "$ne", Value: string(domain.StatusResolved)}}},
		{Key: "location", Value: bson.D{{Key: "$geoWithin", Value: bson.D{
			{Key: "$centerSphere", Value: bson.A{
				bson.A{center.Lng, center.Lat},
				radiusMeters / domain.EarthRadiusMeters,
			}},
		}}}},
	}
	reports, err := s.find(ctx, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("mongo.Nearby: %w", err)
	}
	return reports, nil
}

func (s *Store) ReportsByReporter(ctx context.Context, reporterID string, limit int) ([]*domain.Report, error) {
	reports, err := s.find(ctx, bson.D{{Key: "reporter_id", Value: reporterID}}, limit)
	if err != nil {
		return nil, fmt.Errorf("mongo.ReportsByReporter %s: %w", reporterID, err)
	}
	return reports, nil
}

func (s *Store) find(ctx context.Context, filter bson.D, limit int) ([]*domain.Report, error) {
	opts := options.Find().SetSort(bson.D{{Key: "reported_at", Value: -1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.reports.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []reportDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domain.Report, len(docs))
	for i := range docs {
		out[i] = docs[i].report()
	}
	return out, nil
}

func (s *Store) transact(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	return err
}

// missingOr tells a missing document apart from one whose condition failed.
func (s *Store) missingOr(ctx context.Context, coll *mongo.Collection, id string, missing, failed error) error {
	n, err := coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: id}}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return failed
}
