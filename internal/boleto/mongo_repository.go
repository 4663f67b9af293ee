package boleto

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Neskrux/CrmInvest-sub003/internal/config"
)

type mongoPatient struct {
	ID    primitive.ObjectID `bson:"_id"`
	Name  string             `bson:"name"`
	Phone string             `bson:"phone"`
}

type mongoBoleto struct {
	ID                 primitive.ObjectID   `bson:"_id,omitempty"`
	PatientID          primitive.ObjectID   `bson:"patient_id"`
	DueDate            time.Time            `bson:"due_date"`
	Amount             primitive.Decimal128 `bson:"amount"`
	Status             string               `bson:"status"`
	Notified3DaysAt    *time.Time           `bson:"notified_3_days_at,omitempty"`
	Notified1DayAt     *time.Time           `bson:"notified_1_day_at,omitempty"`
	NotifiedDueTodayAt *time.Time           `bson:"notified_due_today_at,omitempty"`
	Patient            mongoPatient         `bson:"patient,omitempty"`
}

// MongoRepository stores boletos and patients in two collections; due dates
// are kept as UTC midnight.
type MongoRepository struct {
	boletos  *mongo.Collection
	patients string
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{boletos: db.Collection("boletos"), patients: "patients"}
}

func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	return config.EnsureIndex(ctx, r.boletos, bson.D{{Key: "due_date", Value: 1}, {Key: "status", Value: 1}}, false)
}

func (r *MongoRepository) FindDue(ctx context.Context, dueDate time.Time, kind Kind) ([]Obligation, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "due_date", Value: calendarDate(dueDate, time.UTC)},
			{Key: "status", Value: StatusOpen},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: r.patients},
			{Key: "localField", Value: "patient_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "patient"},
		}}},
		{{Key: "$unwind", Value: "$patient"}},
		{{Key: "$match", Value: bson.D{
			{Key: "patient.phone", Value: bson.D{{Key: "$nin", Value: bson.A{nil, ""}}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	cursor, err := r.boletos.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("find due boletos: %w", err)
	}
	var docs []mongoBoleto
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode due boletos: %w", err)
	}

	out := make([]Obligation, 0, len(docs))
	for _, d := range docs {
		amount, err := decimal.NewFromString(d.Amount.String())
		if err != nil {
			return nil, fmt.Errorf("boleto %s: bad amount: %w", d.ID.Hex(), err)
		}
		out = append(out, Obligation{
			ID:                 d.ID.Hex(),
			RecipientID:        d.PatientID.Hex(),
			RecipientName:      d.Patient.Name,
			Contact:            d.Patient.Phone,
			DueDate:            calendarDate(d.DueDate, time.UTC),
			Amount:             amount,
			Status:             d.Status,
			Notified3DaysAt:    d.Notified3DaysAt,
			Notified1DayAt:     d.Notified1DayAt,
			NotifiedDueTodayAt: d.NotifiedDueTodayAt,
		})
	}
	return out, nil
}

func (r *MongoRepository) MarkNotified(ctx context.Context, kind Kind, ids []string, at time.Time) error {
	field := kind.MarkerField()
	if field == "" {
		return fmt.Errorf("mark notified: unknown kind %q", kind)
	}
	if len(ids) == 0 {
		return nil
	}
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return fmt.Errorf("mark notified: bad id %q: %w", id, err)
		}
		oids = append(oids, oid)
	}
	filter := bson.M{
		"_id": bson.M{"$in": oids},
		"$or": bson.A{
			bson.M{field: nil},
			bson.M{field: bson.M{"$lt": startOfDay(at)}},
		},
	}
	if _, err := r.boletos.UpdateMany(ctx, filter, bson.M{"$set": bson.M{field: at}}); err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}
