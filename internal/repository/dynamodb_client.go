package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"a2ui-agent/internal/domain"
)

const (
	skPrefixGen     = "GEN#"
	skMeta          = "META#"
	statusValidated = "validated"
	ttlDuration     = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client records generated UI descriptions per session in a single DynamoDB
// table.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

func genSK(ts time.Time) string {
	return skPrefixGen + ts.UTC().Format(time.RFC3339Nano)
}

func (c *Client) ttlValue() int64 {
	return c.now().Add(ttlDuration).Unix()
}

// GetSessionGenerationCount returns the number of recorded generations for a
// session, zero if the session is unknown.
func (c *Client) GetSessionGenerationCount(ctx context.Context, sessionID string) (int, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("repository: GetSessionGenerationCount get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return 0, nil
	}

	n, err := intAttr(out.Item, "generations")
	if err != nil {
		return 0, fmt.Errorf("repository: GetSessionGenerationCount decode generations: %w", err)
	}
	return n, nil
}

// SaveGeneration writes the generation record and the updated session
// metadata in one transaction.
func (c *Client) SaveGeneration(ctx context.Context, sessionID, query, content string, attempts, generations int) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("repository: SaveGeneration: session id is required")
	}
	gen := c.NewGeneration(sessionID, query, content, attempts)
	meta := c.NewSessionMeta(sessionID, generations)
	if err := c.saveRecord(ctx, gen, meta); err != nil {
		return fmt.Errorf("repository: SaveGeneration: %w", err)
	}
	return nil
}

func (c *Client) saveRecord(ctx context.Context, gen domain.Generation, meta domain.SessionMeta) error {
	if gen.PK == "" || gen.SK == "" {
		return errors.New("generation PK and SK are required")
	}
	if meta.PK == "" || meta.SK == "" {
		return errors.New("meta PK and SK are required")
	}

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                generationItem(gen),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(c.tableName),
					Item:      metaItem(meta),
				},
			},
		},
	})
	return err
}

// NewGeneration constructs a Generation with keys and TTL derived from the
// session id and the current time.
func (c *Client) NewGeneration(sessionID, query, content string, attempts int) domain.Generation {
	return domain.Generation{
		PK:        sessionPK(sessionID),
		SK:        genSK(c.now()),
		SessionID: sessionID,
		Query:     query,
		Content:   content,
		Attempts:  attempts,
		Status:    statusValidated,
		TTL:       c.ttlValue(),
	}
}

func (c *Client) NewSessionMeta(sessionID string, generations int) domain.SessionMeta {
	return domain.SessionMeta{
		PK:           sessionPK(sessionID),
		SK:           skMeta,
		SessionID:    sessionID,
		LastActivity: c.now().UTC().Format(time.RFC3339),
		Generations:  generations,
		TTL:          c.ttlValue(),
	}
}

func generationItem(g domain.Generation) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: g.PK},
		"SK":        &types.AttributeValueMemberS{Value: g.SK},
		"sessionId": &types.AttributeValueMemberS{Value: g.SessionID},
		"query":     &types.AttributeValueMemberS{Value: g.Query},
		"content":   &types.AttributeValueMemberS{Value: g.Content},
		"attempts":  &types.AttributeValueMemberN{Value: strconv.Itoa(g.Attempts)},
		"status":    &types.AttributeValueMemberS{Value: g.Status},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(g.TTL, 10)},
	}
}

func metaItem(meta domain.SessionMeta) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":           &types.AttributeValueMemberS{Value: meta.PK},
		"SK":           &types.AttributeValueMemberS{Value: meta.SK},
		"sessionId":    &types.AttributeValueMemberS{Value: meta.SessionID},
		"lastActivity": &types.AttributeValueMemberS{Value: meta.LastActivity},
		"generations":  &types.AttributeValueMemberN{Value: strconv.Itoa(meta.Generations)},
		"ttl":          &types.AttributeValueMemberN{Value: strconv.FormatInt(meta.TTL, 10)},
	}
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
