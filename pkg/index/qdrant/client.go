// Package qdrant implements index.Index against a Qdrant collection
// over gRPC.
package qdrant

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/semcache/semcache/pkg/index"
)

// Config holds Qdrant connection settings.
type Config struct {
	// Host is the Qdrant endpoint (required)
	Host string

	// GRPCPort is the gRPC port (default: 6334)
	GRPCPort int

	// Collection is the Qdrant collection holding query vectors (required)
	Collection string

	// APIKey authenticates against Qdrant Cloud
	APIKey string

	// UseTLS enables TLS for the connection
	UseTLS bool
}

// Client implements index.Index for Qdrant.
type Client struct {
	cfg        Config
	conn       *grpc.ClientConn
	points     pb.PointsClient
	collection string
}

// payloadKeyField stores the original cache key, since Qdrant point IDs
// must be numeric or UUID.
const payloadKeyField = "cache_key"

// NewClient connects to Qdrant and returns an index backed by the
// configured collection.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("host is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("collection is required")
	}
	if cfg.GRPCPort <= 0 {
		cfg.GRPCPort = 6334
	}

	var opts []grpc.DialOption
	if cfg.UseTLS {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.GRPCPort)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s: %w", addr, err)
	}

	return &Client{
		cfg:        cfg,
		conn:       conn,
		points:     pb.NewPointsClient(conn),
		collection: cfg.Collection,
	}, nil
}

// pointID derives a stable UUID for a cache key so upserts replace
// rather than duplicate.
func pointID(key string) *pb.PointId {
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(key))
	return &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id.String()}}
}

func (c *Client) authCtx(ctx context.Context) context.Context {
	if c.cfg.APIKey != "" {
		return metadata.AppendToOutgoingContext(ctx, "api-key", c.cfg.APIKey)
	}
	return ctx
}

// Upsert stores or replaces the vector for a key.
func (c *Client) Upsert(ctx context.Context, key string, vector []float32) error {
	if len(vector) == 0 {
		return index.ErrInvalidVector
	}

	wait := true
	_, err := c.points.Upsert(c.authCtx(ctx), &pb.UpsertPoints{
		CollectionName: c.collection,
		Wait:           &wait,
		Points: []*pb.PointStruct{{
			Id: pointID(key),
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: vector}},
			},
			Payload: map[string]*pb.Value{
				payloadKeyField: {Kind: &pb.Value_StringValue{StringValue: key}},
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}
	return nil
}

// Delete removes a key's vector.
func (c *Client) Delete(ctx context.Context, key string) error {
	wait := true
	_, err := c.points.Delete(c.authCtx(ctx), &pb.DeletePoints{
		CollectionName: c.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: []*pb.PointId{pointID(key)}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	return nil
}

// Search returns up to topK matches ordered by descending score.
func (c *Client) Search(ctx context.Context, vector []float32, topK int) ([]index.Match, error) {
	if len(vector) == 0 {
		return nil, index.ErrInvalidVector
	}
	if topK <= 0 {
		topK = 10
	}

	resp, err := c.points.Search(c.authCtx(ctx), &pb.SearchPoints{
		CollectionName: c.collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	matches := make([]index.Match, 0, len(resp.Result))
	for _, point := range resp.Result {
		key := ""
		if v, ok := point.Payload[payloadKeyField]; ok {
			key = v.GetStringValue()
		}
		if key == "" {
			// Points written by other tools without the key payload
			// cannot be resolved back to a cache entry.
			continue
		}
		matches = append(matches, index.Match{Key: key, Score: point.Score})
	}
	return matches, nil
}

// Close releases the gRPC connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
