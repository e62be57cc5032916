// Package archive keeps a copy of every published document outside the
// relational store.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/richmond-dms/docflow/internal/config"
	"github.com/richmond-dms/docflow/internal/db/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type Snapshot struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DocumentID  string             `bson:"documentId" json:"documentId"`
	FileName    string             `bson:"fileName" json:"fileName"`
	ContentType string             `bson:"contentType" json:"contentType"`
	Size        int64              `bson:"size" json:"size"`
	Content     string             `bson:"content" json:"content"`
	UploadDate  time.Time          `bson:"uploadDate" json:"uploadDate"`
	Metadata    map[string]any     `bson:"metadata,omitempty" json:"metadata,omitempty"`
}

// SnapshotOf builds the archive record for a published document.
func SnapshotOf(doc *models.Document, publishedBy string, at time.Time) Snapshot {
	fields := doc.Fields()
	return Snapshot{
		DocumentID:  doc.ID,
		FileName:    doc.Title + ".html",
		ContentType: doc.MimeType,
		Size:        int64(len(fields.Content)),
		Content:     fields.Content,
		UploadDate:  at,
		Metadata: map[string]any{
			"title":       doc.Title,
			"category":    doc.Category,
			"status":      string(doc.Status),
			"checksum":    doc.Checksum,
			"publishedBy": publishedBy,
			"versions":    len(fields.Versions),
		},
	}
}

type Archive interface {
	Store(ctx context.Context, snap Snapshot) error
	Close(ctx context.Context) error
}

type Noop struct{}

func (Noop) Store(context.Context, Snapshot) error { return nil }
func (Noop) Close(context.Context) error           { return nil }

type MongoArchive struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *zap.Logger
}

// New connects to MongoDB when a URL is configured and returns Noop otherwise.
func New(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (Archive, error) {
	if cfg.URL == "" {
		logger.Info("MongoDB archive disabled")
		return Noop{}, nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	logger.Info("MongoDB archive connected",
		zap.String("database", cfg.Database),
		zap.String("collection", cfg.Collection))
	return &MongoArchive{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		logger:     logger.With(zap.String("component", "archive")),
	}, nil
}

// Store upserts one record per document.
func (m *MongoArchive) Store(ctx context.Context, snap Snapshot) error {
	_, err := m.collection.ReplaceOne(ctx,
		bson.M{"documentId": snap.DocumentID},
		snap,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to archive document %s: %w", snap.DocumentID, err)
	}
	m.logger.Info("Document archived", zap.String("document_id", snap.DocumentID), zap.Int64("size", snap.Size))
	return nil
}

func (m *MongoArchive) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
