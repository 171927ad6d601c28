package s3

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/bitrow/blobstore"
)

// CurrentMarker is the virtual blob name whose content names the
// latest committed statistics generation.
const CurrentMarker = "CURRENT"

// ErrConcurrentCommit is returned when another writer committed a
// generation between read and write.
var ErrConcurrentCommit = errors.New("s3: concurrent generation commit")

// DDBClient is the subset of the DynamoDB API the commit store uses.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DDBCommitStore is an S3 BlobStore with a DynamoDB commit log that
// gives the CURRENT pointer the compare-and-swap semantics S3 lacks.
// Statistics side-files land in S3 under a generation prefix; the
// generation becomes visible when its name is committed as a new
// version row. Concurrent writers race on the conditional put and the
// loser gets ErrConcurrentCommit.
//
// Table schema: partition key base_uri (S), sort key version (N).
// The committed generation name is stored in the generation attribute.
type DDBCommitStore struct {
	inner     *Store
	ddb       DDBClient
	tableName string
	baseURI   string
}

// NewDDBCommitStore wraps an S3 store with the commit log. baseURI is
// the partition key, conventionally "s3://bucket/prefix".
func NewDDBCommitStore(inner *Store, ddb DDBClient, tableName, baseURI string) *DDBCommitStore {
	return &DDBCommitStore{
		inner:     inner,
		ddb:       ddb,
		tableName: tableName,
		baseURI:   baseURI,
	}
}

// Open opens a blob. Opening CurrentMarker yields a virtual blob whose
// content is the latest committed generation name.
func (s *DDBCommitStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if name == CurrentMarker {
		version, generation, err := s.latestVersion(ctx)
		if err != nil {
			return nil, err
		}
		if version == 0 {
			return nil, blobstore.ErrNotFound
		}
		return &markerBlob{content: []byte(generation)}, nil
	}
	return s.inner.Open(ctx, name)
}

// Put writes a blob. Putting CurrentMarker commits data as the new
// generation name through a conditional DynamoDB write.
func (s *DDBCommitStore) Put(ctx context.Context, name string, data []byte) error {
	if name == CurrentMarker {
		return s.commitGeneration(ctx, string(data))
	}
	return s.inner.Put(ctx, name, data)
}

// Create starts a streaming upload. CurrentMarker cannot be streamed.
func (s *DDBCommitStore) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	if name == CurrentMarker {
		return nil, fmt.Errorf("s3: %s must be written with Put", CurrentMarker)
	}
	return s.inner.Create(ctx, name)
}

// Delete removes a blob from S3. The commit log is append-only.
func (s *DDBCommitStore) Delete(ctx context.Context, name string) error {
	return s.inner.Delete(ctx, name)
}

// List lists S3 blobs under prefix.
func (s *DDBCommitStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

func (s *DDBCommitStore) latestVersion(ctx context.Context) (uint64, string, error) {
	resp, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("s3: query commit log: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("s3: commit log row has no numeric version")
	}
	genAttr, ok := item["generation"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("s3: commit log row has no generation name")
	}

	var version uint64
	if _, err := fmt.Sscanf(versionAttr.Value, "%d", &version); err != nil {
		return 0, "", fmt.Errorf("s3: parse commit version: %w", err)
	}
	return version, genAttr.Value, nil
}

func (s *DDBCommitStore) commitGeneration(ctx context.Context, generation string) error {
	current, _, err := s.latestVersion(ctx)
	if err != nil {
		return err
	}

	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri":   &types.AttributeValueMemberS{Value: s.baseURI},
			"version":    &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", current+1)},
			"generation": &types.AttributeValueMemberS{Value: generation},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentCommit
		}
		return fmt.Errorf("s3: commit generation: %w", err)
	}
	return nil
}

// markerBlob serves the CURRENT pointer content from memory.
type markerBlob struct {
	content []byte
}

func (b *markerBlob) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b.content)) {
		return 0, io.EOF
	}
	n := copy(p, b.content[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *markerBlob) Close() error {
	return nil
}

func (b *markerBlob) Size() int64 {
	return int64(len(b.content))
}
