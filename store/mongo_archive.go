package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/deymohit02/crypto-market-tracker/models"
)

const (
	mongoDBName             = "crypto_tracker"
	mongoSnapshotCollection = "snapshots"
	mongoBatchSize          = 100
)

// MongoArchive mirrors the latest snapshot batch to MongoDB Atlas so a
// fresh instance can restore real data instead of seeding synthetic
// placeholders. It is optional and never on the request path.
type MongoArchive struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// archivedCoin is the Mongo document shape. Decimals are flattened to
// float64; archive fidelity is display-grade, same as the chart data.
type archivedCoin struct {
	ID            string     `bson:"_id"`
	Symbol        string     `bson:"symbol"`
	Name          string     `bson:"name"`
	CurrentPrice  float64    `bson:"current_price"`
	MarketCap     float64    `bson:"market_cap"`
	MarketCapRank int        `bson:"market_cap_rank"`
	Volume24h     float64    `bson:"volume_24h"`
	Change24h     float64    `bson:"change_24h"`
	Change7d      float64    `bson:"change_7d"`
	ATH           float64    `bson:"ath"`
	ATHDate       *time.Time `bson:"ath_date,omitempty"`
	ATL           float64    `bson:"atl"`
	ATLDate       *time.Time `bson:"atl_date,omitempty"`
	LastUpdated   time.Time  `bson:"last_updated"`
	ArchivedAt    time.Time  `bson:"archived_at"`
}

// NewMongoArchive connects to MongoDB and verifies the connection with a
// ping. Callers gate on a non-empty URI.
func NewMongoArchive(uri string) (*MongoArchive, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(10).
		SetMinPoolSize(2).
		SetMaxConnIdleTime(30 * time.Second).
		SetConnectTimeout(30 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongo connect failed: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}

	log.Info().Msg("mongo archive connected")
	return &MongoArchive{
		client: client,
		coll:   client.Database(mongoDBName).Collection(mongoSnapshotCollection),
	}, nil
}

// SaveSnapshots upserts the batch as one document per coin, in chunks.
func (a *MongoArchive) SaveSnapshots(ctx context.Context, coins []models.Coin) error {
	if len(coins) == 0 {
		return nil
	}

	now := time.Now()
	var operations []mongo.WriteModel
	for _, coin := range coins {
		doc := toArchived(coin, now)
		operation := mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": doc.ID}).
			SetReplacement(doc).
			SetUpsert(true)
		operations = append(operations, operation)
	}

	for i := 0; i < len(operations); i += mongoBatchSize {
		end := i + mongoBatchSize
		if end > len(operations) {
			end = len(operations)
		}
		if _, err := a.coll.BulkWrite(ctx, operations[i:end]); err != nil {
			return fmt.Errorf("mongo bulk write failed: %w", err)
		}
	}
	return nil
}

// LoadSnapshots returns every archived snapshot, rank order.
func (a *MongoArchive) LoadSnapshots(ctx context.Context) ([]models.Coin, error) {
	opts := options.Find().SetSort(bson.M{"market_cap_rank": 1})
	cursor, err := a.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find failed: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []archivedCoin
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo decode failed: %w", err)
	}

	coins := make([]models.Coin, 0, len(docs))
	for _, doc := range docs {
		coins = append(coins, fromArchived(doc))
	}
	return coins, nil
}

func (a *MongoArchive) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}

func toArchived(coin models.Coin, archivedAt time.Time) archivedCoin {
	return archivedCoin{
		ID:            coin.ID,
		Symbol:        coin.Symbol,
		Name:          coin.Name,
		CurrentPrice:  coin.CurrentPrice.InexactFloat64(),
		MarketCap:     coin.MarketCap.InexactFloat64(),
		MarketCapRank: coin.MarketCapRank,
		Volume24h:     coin.Volume24h.InexactFloat64(),
		Change24h:     coin.Change24h,
		Change7d:      coin.Change7d,
		ATH:           coin.ATH.InexactFloat64(),
		ATHDate:       coin.ATHDate,
		ATL:           coin.ATL.InexactFloat64(),
		ATLDate:       coin.ATLDate,
		LastUpdated:   coin.LastUpdated,
		ArchivedAt:    archivedAt,
	}
}

func fromArchived(doc archivedCoin) models.Coin {
	return models.Coin{
		ID:            doc.ID,
		Symbol:        doc.Symbol,
		Name:          doc.Name,
		CurrentPrice:  decimal.NewFromFloat(doc.CurrentPrice),
		MarketCap:     decimal.NewFromFloat(doc.MarketCap),
		MarketCapRank: doc.MarketCapRank,
		Volume24h:     decimal.NewFromFloat(doc.Volume24h),
		Change24h:     doc.Change24h,
		Change7d:      doc.Change7d,
		ATH:           decimal.NewFromFloat(doc.ATH),
		ATHDate:       doc.ATHDate,
		ATL:           decimal.NewFromFloat(doc.ATL),
		ATLDate:       doc.ATLDate,
		LastUpdated:   doc.LastUpdated,
	}
}
