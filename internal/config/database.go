package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Store struct {
	Driver        string `envconfig:"DRIVER" default:"postgres"`
	PostgresDSN   string `envconfig:"POSTGRES_DSN"`
	MongoURI      string `envconfig:"MONGO_URI"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"crm"`
	AutoMigrate   bool   `envconfig:"AUTO_MIGRATE" default:"false"`
}

func (s Store) Validate() error {
	switch s.Driver {
	case DriverPostgres:
		if s.PostgresDSN == "" {
			return &ConfigurationError{Field: "STORE_POSTGRES_DSN", Reason: "required for the postgres driver"}
		}
	case DriverMongo:
		if s.MongoURI == "" {
			return &ConfigurationError{Field: "STORE_MONGO_URI", Reason: "required for the mongo driver"}
		}
	default:
		return &ConfigurationError{Field: "STORE_DRIVER", Reason: fmt.Sprintf("unknown driver %q", s.Driver)}
	}
	return nil
}

type MongoDBClient struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// NewMongoDBClient connects and pings MongoDB and disconnects on fx stop.
func NewMongoDBClient(lc fx.Lifecycle, cfg *Config, log *zap.Logger) (*MongoDBClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Store.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}
	log.Info("connected to MongoDB", zap.String("database", cfg.Store.MongoDatabase))

	lc.Append(fx.Hook{
		OnStop: func(stopCtx context.Context) error {
			log.Info("closing MongoDB connection")
			return client.Disconnect(stopCtx)
		},
	})
	return &MongoDBClient{Client: client, Database: client.Database(cfg.Store.MongoDatabase)}, nil
}

// EnsureIndex creates an index on collection if it does not exist yet.
func EnsureIndex(ctx context.Context, collection *mongo.Collection, keys bson.D, unique bool) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	model := mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(unique)}
	if _, err := collection.Indexes().CreateOne(ctx, model); err != nil {
		return fmt.Errorf("create index on %s: %w", collection.Name(), err)
	}
	return nil
}

// NewPostgresDB opens and pings the relational store and closes it on fx stop.
func NewPostgresDB(lc fx.Lifecycle, cfg *Config, log *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Store.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	log.Info("connected to Postgres")

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			log.Info("closing Postgres connection")
			return db.Close()
		},
	})
	return db, nil
}
