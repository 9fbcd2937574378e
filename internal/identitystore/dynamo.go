package identitystore

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/pkg/errors"

	"github.com/AceFire6/flagsmith/model"
)

const (
	// dynamoBatchSize is the BatchWriteItem request limit imposed by DynamoDB.
	dynamoBatchSize = 25

	// unprocessedItemResubmits bounds the in-call resubmission of items
	// DynamoDB returned as unprocessed before the write is reported as a
	// transient failure.
	unprocessedItemResubmits = 3
)

// dynamoAPI is the subset of the DynamoDB client the store relies on.
type dynamoAPI interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoIdentityStore adapts the DynamoDB identity table to the
// IdentityStore contract. Items are keyed by project and identifier, so a
// rewritten identity overwrites its previous item.
type DynamoIdentityStore struct {
	client    dynamoAPI
	tableName string
}

// NewDynamoIdentityStore creates an adapter over the given DynamoDB client
// and table.
func NewDynamoIdentityStore(client dynamoAPI, tableName string) *DynamoIdentityStore {
	return &DynamoIdentityStore{
		client:    client,
		tableName: tableName,
	}
}

// NewDynamoClient creates a DynamoDB client for the given region. A
// non-empty endpoint overrides the resolved one, which allows pointing the
// server at a local DynamoDB.
func NewDynamoClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load aws configuration")
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return client, nil
}

type identityItem struct {
	ProjectID     string             `dynamodbav:"ProjectID"`
	Identifier    string             `dynamodbav:"Identifier"`
	Traits        []traitItem        `dynamodbav:"Traits,omitempty"`
	FlagOverrides []flagOverrideItem `dynamodbav:"FlagOverrides,omitempty"`
}

type traitItem struct {
	Key          string `dynamodbav:"Key"`
	ValueType    string `dynamodbav:"ValueType"`
	StringValue  string `dynamodbav:"StringValue,omitempty"`
	IntegerValue int64  `dynamodbav:"IntegerValue,omitempty"`
	BooleanValue bool   `dynamodbav:"BooleanValue,omitempty"`
}

type flagOverrideItem struct {
	FeatureKey string `dynamodbav:"FeatureKey"`
	Enabled    bool   `dynamodbav:"Enabled"`
	Value      string `dynamodbav:"Value,omitempty"`
}

func toIdentityItem(projectID string, identity *model.Identity) *identityItem {
	item := &identityItem{
		ProjectID:  projectID,
		Identifier: identity.Identifier,
	}
	for _, trait := range identity.Traits {
		item.Traits = append(item.Traits, traitItem{
			Key:          trait.Key,
			ValueType:    string(trait.ValueType),
			StringValue:  trait.StringValue,
			IntegerValue: trait.IntegerValue,
			BooleanValue: trait.BooleanValue,
		})
	}
	for _, override := range identity.FlagOverrides {
		item.FlagOverrides = append(item.FlagOverrides, flagOverrideItem{
			FeatureKey: override.FeatureKey,
			Enabled:    override.Enabled,
			Value:      override.Value,
		})
	}

	return item
}

func (i *identityItem) toIdentity() *model.Identity {
	identity := &model.Identity{
		ProjectID:  i.ProjectID,
		Identifier: i.Identifier,
	}
	for _, trait := range i.Traits {
		identity.Traits = append(identity.Traits, model.Trait{
			Key:          trait.Key,
			ValueType:    model.TraitValueType(trait.ValueType),
			StringValue:  trait.StringValue,
			IntegerValue: trait.IntegerValue,
			BooleanValue: trait.BooleanValue,
		})
	}
	for _, override := range i.FlagOverrides {
		identity.FlagOverrides = append(identity.FlagOverrides, model.FlagOverride{
			FeatureKey: override.FeatureKey,
			Enabled:    override.Enabled,
			Value:      override.Value,
		})
	}

	return identity
}

// Count returns the number of the project's items in the table.
func (s *DynamoIdentityStore) Count(ctx context.Context, projectID string) (int64, error) {
	var total int64
	var startKey map[string]types.AttributeValue

	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("ProjectID = :projectID"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":projectID": &types.AttributeValueMemberS{Value: projectID},
			},
			Select:            types.SelectCount,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return 0, classifyDynamoError(errors.Wrap(err, "failed to count identities in dynamo"))
		}

		total += int64(out.Count)
		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	return total, nil
}

// List returns one page of the project's identities ordered by identifier.
// Items that cannot be unmarshalled are reported as malformed rather than
// failing the page.
func (s *DynamoIdentityStore) List(ctx context.Context, projectID, cursor string, perPage int) (*Page, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("ProjectID = :projectID"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":projectID": &types.AttributeValueMemberS{Value: projectID},
		},
		Limit: aws.Int32(int32(perPage)),
	}
	if cursor != "" {
		input.ExclusiveStartKey = map[string]types.AttributeValue{
			"ProjectID":  &types.AttributeValueMemberS{Value: projectID},
			"Identifier": &types.AttributeValueMemberS{Value: cursor},
		}
	}

	out, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, classifyDynamoError(errors.Wrap(err, "failed to list identities in dynamo"))
	}

	page := &Page{Identities: make([]*model.Identity, 0, len(out.Items))}
	for _, rawItem := range out.Items {
		var item identityItem
		err = attributevalue.UnmarshalMap(rawItem, &item)
		if err != nil {
			page.Malformed = append(page.Malformed, rawItemIdentifier(rawItem))
			continue
		}
		page.Identities = append(page.Identities, item.toIdentity())
	}

	// A query may legally return fewer items than the limit, or none at all,
	// while more remain; only the returned key decides whether to continue.
	page.NextCursor = rawItemIdentifier(out.LastEvaluatedKey)

	return page, nil
}

func rawItemIdentifier(item map[string]types.AttributeValue) string {
	if identifier, ok := item["Identifier"].(*types.AttributeValueMemberS); ok {
		return identifier.Value
	}
	return ""
}

// WriteBatch upserts the given identities into the table in chunks of the
// DynamoDB batch limit. Items reported back as unprocessed are resubmitted a
// bounded number of times before the write fails as transient.
func (s *DynamoIdentityStore) WriteBatch(ctx context.Context, projectID string, identities []*model.Identity) error {
	writeRequests := make([]types.WriteRequest, 0, len(identities))
	for _, identity := range identities {
		if err := identity.Validate(); err != nil {
			return NewDataError(identity.Identifier, err)
		}

		attrs, err := attributevalue.MarshalMap(toIdentityItem(projectID, identity))
		if err != nil {
			return NewDataError(identity.Identifier, errors.Wrap(err, "failed to marshal identity for dynamo"))
		}
		writeRequests = append(writeRequests, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: attrs},
		})
	}

	for start := 0; start < len(writeRequests); start += dynamoBatchSize {
		end := start + dynamoBatchSize
		if end > len(writeRequests) {
			end = len(writeRequests)
		}

		err := s.writeChunk(ctx, writeRequests[start:end])
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *DynamoIdentityStore) writeChunk(ctx context.Context, writeRequests []types.WriteRequest) error {
	pending := writeRequests

	for resubmit := 0; resubmit <= unprocessedItemResubmits; resubmit++ {
		out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{s.tableName: pending},
		})
		if err != nil {
			return classifyDynamoError(errors.Wrap(err, "failed to batch write identities to dynamo"))
		}

		pending = out.UnprocessedItems[s.tableName]
		if len(pending) == 0 {
			return nil
		}
	}

	return NewTransientError(errors.Errorf("dynamo left %d items unprocessed", len(pending)))
}

// classifyDynamoError wraps the given error as transient unless DynamoDB
// rejected the request itself. Network failures and server faults are worth
// retrying; client faults such as validation errors are not.
func classifyDynamoError(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		// Unable to reach the backend at all.
		return NewTransientError(err)
	}

	switch apiErr.ErrorCode() {
	case "ProvisionedThroughputExceededException",
		"ThrottlingException",
		"RequestLimitExceeded",
		"InternalServerError",
		"ServiceUnavailable":
		return NewTransientError(err)
	}

	if apiErr.ErrorFault() == smithy.FaultServer {
		return NewTransientError(err)
	}

	return err
}
