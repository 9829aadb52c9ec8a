// infrastructure/dynamodb_video_repository.go
package infrastructure

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/vitovidale/video-api-service/domain"
)

// DynamoDBAPI is the subset of *dynamodb.Client the repository uses.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type videoItem struct {
	ID           string    `dynamodbav:"id"`
	CreatedAt    time.Time `dynamodbav:"createdAt"`
	UpdatedAt    time.Time `dynamodbav:"updatedAt"`
	UserID       string    `dynamodbav:"userId"`
	Name         string    `dynamodbav:"name"`
	Description  string    `dynamodbav:"description"`
	URL          string    `dynamodbav:"url"`
	SnapshotsURL string    `dynamodbav:"snapshotsUrl"`
	Status       string    `dynamodbav:"status"`
}

func (i videoItem) toDomain() domain.Video {
	return domain.Video{
		ID:           i.ID,
		CreatedAt:    i.CreatedAt,
		UpdatedAt:    i.UpdatedAt,
		OwnerID:      i.UserID,
		Name:         i.Name,
		Description:  i.Description,
		URL:          i.URL,
		SnapshotsURL: i.SnapshotsURL,
		Status:       domain.ExtractionStatus(i.Status),
	}
}

// DynamoDBVideoRepository stores one item per video keyed by id. Owner
// scoping is applied on read.
type DynamoDBVideoRepository struct {
	client    DynamoDBAPI
	tableName string
	newID     func() string
}

var _ domain.VideoStore = (*DynamoDBVideoRepository)(nil)

func NewDynamoDBVideoRepository(client DynamoDBAPI, tableName string) *DynamoDBVideoRepository {
	return &DynamoDBVideoRepository{client: client, tableName: tableName, newID: uuid.NewString}
}

// NewDynamoDBClient builds a client, pointing it at endpoint when one is
// set (LocalStack).
func NewDynamoDBClient(cfg aws.Config, endpoint string) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

func (r *DynamoDBVideoRepository) key(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func (r *DynamoDBVideoRepository) Ping(ctx context.Context) error {
	_, err := r.client.Scan(ctx, &dynamodb.ScanInput{TableName: aws.String(r.tableName), Limit: aws.Int32(1)})
	return err
}

func (r *DynamoDBVideoRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Video, error) {
	input := &dynamodb.ScanInput{
		TableName:        aws.String(r.tableName),
		FilterExpression: aws.String("userId = :userId"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":userId": &types.AttributeValueMemberS{Value: ownerID},
		},
	}

	videos := []domain.Video{}
	paginator := dynamodb.NewScanPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, domain.StorageFailure("failed to scan videos", err)
		}

		var items []videoItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, domain.StorageFailure("failed to decode videos", err)
		}
		for _, item := range items {
			videos = append(videos, item.toDomain())
		}
	}
	return videos, nil
}

func (r *DynamoDBVideoRepository) GetByIDAndOwner(ctx context.Context, id, ownerID string) (*domain.Video, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            r.key(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, domain.StorageFailure("failed to get video", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var item videoItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, domain.StorageFailure("failed to decode video", err)
	}
	if item.UserID != ownerID {
		return nil, nil
	}
	v := item.toDomain()
	return &v, nil
}

func (r *DynamoDBVideoRepository) Insert(ctx context.Context, video domain.Video) (domain.Video, error) {
	video.ID = r.newID()
	av, err := attributevalue.MarshalMap(videoItem{
		ID:           video.ID,
		CreatedAt:    video.CreatedAt,
		UpdatedAt:    video.UpdatedAt,
		UserID:       video.OwnerID,
		Name:         video.Name,
		Description:  video.Description,
		URL:          video.URL,
		SnapshotsURL: video.SnapshotsURL,
		Status:       string(video.Status),
	})
	if err != nil {
		return domain.Video{}, domain.StorageFailure("failed to encode video", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		return domain.Video{}, domain.StorageFailure("failed to put video", err)
	}
	return video, nil
}

func (r *DynamoDBVideoRepository) UpdateStatus(ctx context.Context, video domain.Video) error {
	return r.update(ctx, video.ID, "SET #status = :status, #updatedAt = :updatedAt",
		map[string]string{"#status": "status", "#updatedAt": "updatedAt"},
		map[string]types.AttributeValue{
			":status":    &types.AttributeValueMemberS{Value: string(video.Status)},
			":updatedAt": &types.AttributeValueMemberS{Value: video.UpdatedAt.Format(time.RFC3339Nano)},
		})
}

func (r *DynamoDBVideoRepository) UpdateStatusAndSnapshotsURL(ctx context.Context, video domain.Video) error {
	return r.update(ctx, video.ID, "SET #status = :status, #snapshotsUrl = :snapshotsUrl, #updatedAt = :updatedAt",
		map[string]string{"#status": "status", "#snapshotsUrl": "snapshotsUrl", "#updatedAt": "updatedAt"},
		map[string]types.AttributeValue{
			":status":       &types.AttributeValueMemberS{Value: string(video.Status)},
			":snapshotsUrl": &types.AttributeValueMemberS{Value: video.SnapshotsURL},
			":updatedAt":    &types.AttributeValueMemberS{Value: video.UpdatedAt.Format(time.RFC3339Nano)},
		})
}

// update only touches an existing item. UpdateItem would otherwise upsert
// a partial record for an id deleted in the meantime.
func (r *DynamoDBVideoRepository) update(ctx context.Context, id, expression string, names map[string]string, values map[string]types.AttributeValue) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       r.key(id),
		UpdateExpression:          aws.String(expression),
		ConditionExpression:       aws.String("attribute_exists(id)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	var conditionFailed *types.ConditionalCheckFailedException
	if errors.As(err, &conditionFailed) {
		return domain.NewError(domain.CodeNotFound, "video not found", err)
	}
	if err != nil {
		return domain.StorageFailure("failed to update video", err)
	}
	return nil
}

func (r *DynamoDBVideoRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       r.key(id),
	})
	if err != nil {
		return domain.StorageFailure("failed to delete video", err)
	}
	return nil
}
