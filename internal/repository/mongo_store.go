package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ignatzorin/safetrip-backend/internal/db"
	"github.com/ignatzorin/safetrip-backend/internal/models"
	"github.com/ignatzorin/safetrip-backend/internal/pkg/apperror"
	"github.com/ignatzorin/safetrip-backend/internal/repository/common"
)

type locationDoc struct {
	Lat float64 `bson:"lat"`
	Lng float64 `bson:"lng"`
}

type alertDoc struct {
	ID           string       `bson:"_id"`
	UserID       string       `bson:"user_id"`
	ContactEmail *string      `bson:"contact_email,omitempty"`
	Location     *locationDoc `bson:"location,omitempty"`
	Status       string       `bson:"status"`
	Description  string       `bson:"description"`
	CreatedAt    time.Time    `bson:"created_at"`
	ResolvedAt   *time.Time   `bson:"resolved_at,omitempty"`
}

type reportDoc struct {
	ID           string       `bson:"_id"`
	UserID       string       `bson:"user_id"`
	ContactEmail *string      `bson:"contact_email,omitempty"`
	Title        string       `bson:"title"`
	Description  string       `bson:"description"`
	Category     string       `bson:"category"`
	Location     *locationDoc `bson:"location,omitempty"`
	CreatedAt    time.Time    `bson:"created_at"`
}

func toLocationDoc(loc *models.Location) *locationDoc {
	if loc == nil {
		return nil
	}
	return &locationDoc{Lat: loc.Lat, Lng: loc.Lng}
}

func (d *locationDoc) toModel() *models.Location {
	if d == nil {
		return nil
	}
	return &models.Location{Lat: d.Lat, Lng: d.Lng}
}

func (d alertDoc) toModel() models.Alert {
	id, _ := uuid.Parse(d.ID)
	return models.Alert{
		ID:           id,
		UserID:       d.UserID,
		ContactEmail: d.ContactEmail,
		Location:     d.Location.toModel(),
		Status:       models.AlertStatus(d.Status),
		Description:  d.Description,
		CreatedAt:    d.CreatedAt,
		ResolvedAt:   d.ResolvedAt,
	}
}

func (d reportDoc) toModel() models.Report {
	id, _ := uuid.Parse(d.ID)
	return models.Report{
		ID:           id,
		UserID:       d.UserID,
		ContactEmail: d.ContactEmail,
		Title:        d.Title,
		Description:  d.Description,
		Category:     d.Category,
		Location:     d.Location.toModel(),
		CreatedAt:    d.CreatedAt,
	}
}

// MongoStore реализация AlertStore поверх коллекций sos_alerts и reports.
type MongoStore struct {
	client  *mongo.Client
	alerts  *mongo.Collection
	reports *mongo.Collection
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	d := client.Database(database)
	return &MongoStore{
		client:  client,
		alerts:  d.Collection(db.AlertCollection),
		reports: d.Collection(db.ReportCollection),
	}
}

func (s *MongoStore) CreateAlert(ctx context.Context, in models.NewAlertInput) (*models.Alert, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	// Mongo хранит время с точностью до миллисекунд.
	a := in.Build(common.CeilTime(time.Now().UTC(), common.MongoTimePrecision))
	a.ID = uuid.New()

	doc := alertDoc{
		ID:           a.ID.String(),
		UserID:       a.UserID,
		ContactEmail: a.ContactEmail,
		Location:     toLocationDoc(a.Location),
		Status:       string(a.Status),
		Description:  a.Description,
		CreatedAt:    a.CreatedAt,
	}
	if _, err := s.alerts.InsertOne(ctx, doc); err != nil {
		return nil, apperror.Storage(err, "create alert")
	}
	return a, nil
}

func (s *MongoStore) CreateReport(ctx context.Context, in models.NewReportInput) (*models.Report, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	r := in.Build(common.CeilTime(time.Now().UTC(), common.MongoTimePrecision))
	r.ID = uuid.New()

	doc := reportDoc{
		ID:           r.ID.String(),
		UserID:       r.UserID,
		ContactEmail: r.ContactEmail,
		Title:        r.Title,
		Description:  r.Description,
		Category:     r.Category,
		Location:     toLocationDoc(r.Location),
		CreatedAt:    r.CreatedAt,
	}
	if _, err := s.reports.InsertOne(ctx, doc); err != nil {
		return nil, apperror.Storage(err, "create report")
	}
	return r, nil
}

func newestFirst(limit int) *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
}

func (s *MongoStore) findAlerts(ctx context.Context, filter bson.M, limit int, op string) ([]models.Alert, error) {
	cur, err := s.alerts.Find(ctx, filter, newestFirst(limit))
	if err != nil {
		return nil, apperror.Storage(err, op)
	}
	var docs []alertDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, apperror.Storage(err, op)
	}

	out := make([]models.Alert, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (s *MongoStore) findReports(ctx context.Context, filter bson.M, limit int, op string) ([]models.Report, error) {
	cur, err := s.reports.Find(ctx, filter, newestFirst(limit))
	if err != nil {
		return nil, apperror.Storage(err, op)
	}
	var docs []reportDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, apperror.Storage(err, op)
	}

	out := make([]models.Report, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (s *MongoStore) ListAlerts(ctx context.Context, limit int) ([]models.Alert, error) {
	return s.findAlerts(ctx, bson.M{}, ClampLimit(limit), "list alerts")
}

func (s *MongoStore) ListReports(ctx context.Context, limit int) ([]models.Report, error) {
	return s.findReports(ctx, bson.M{}, ClampLimit(limit), "list reports")
}

func (s *MongoStore) ListAlertsForUser(ctx context.Context, userID string, limit int) ([]models.Alert, error) {
	return s.findAlerts(ctx, bson.M{"user_id": userID}, ClampHistoryLimit(limit), "list user alerts")
}

func (s *MongoStore) ListReportsForUser(ctx context.Context, userID string, limit int) ([]models.Report, error) {
	return s.findReports(ctx, bson.M{"user_id": userID}, ClampHistoryLimit(limit), "list user reports")
}

func (s *MongoStore) GetAlert(ctx context.Context, id uuid.UUID) (*models.Alert, error) {
	var doc alertDoc
	err := s.alerts.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.ErrAlertNotFound
	}
	if err != nil {
		return nil, apperror.Storage(err, "get alert")
	}
	a := doc.toModel()
	return &a, nil
}

func (s *MongoStore) ResolveAlert(ctx context.Context, id uuid.UUID) (*models.Alert, bool, error) {
	now := common.CeilTime(time.Now().UTC(), common.MongoTimePrecision)
	filter := bson.M{"_id": id.String(), "status": string(models.AlertStatusActive)}
	update := bson.M{"$set": bson.M{"status": string(models.AlertStatusResolved), "resolved_at": now}}

	var doc alertDoc
	err := s.alerts.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err == nil {
		a := doc.toModel()
		return &a, true, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, apperror.Storage(err, "resolve alert")
	}

	current, err := s.GetAlert(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (s *MongoStore) PurgeResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.alerts.DeleteMany(ctx, bson.M{
		"status":      string(models.AlertStatusResolved),
		"resolved_at": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, apperror.Storage(err, "purge alerts")
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) PurgeReportsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.reports.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, apperror.Storage(err, "purge reports")
	}
	return res.DeletedCount, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
