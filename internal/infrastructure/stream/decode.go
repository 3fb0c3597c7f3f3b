package stream

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"
	"github.com/catalog/backend/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

const (
	attrID    = "id"
	attrName  = "name"
	attrPrice = "price"
)

// decodeRecord normalizes one raw stream record. It never fails: a record
// whose images cannot be decoded keeps nil images, so validation downstream
// classifies it as malformed instead of blocking the shard.
func decodeRecord(rec types.Record) catalog.ChangeRecord {
	out := catalog.ChangeRecord{
		Kind: catalog.ChangeKind(rec.EventName),
	}
	if rec.EventID != nil {
		out.ID = *rec.EventID
	}

	sr := rec.Dynamodb
	if sr == nil {
		return out
	}
	if sr.SequenceNumber != nil {
		out.SequenceToken = *sr.SequenceNumber
	}
	if sr.ApproximateCreationDateTime != nil {
		out.ArrivalTime = *sr.ApproximateCreationDateTime
	} else {
		out.ArrivalTime = time.Now()
	}
	if key, ok := sr.Keys[attrID].(*types.AttributeValueMemberS); ok {
		out.Key = key.Value
	}
	out.OldImage = decodeImage(sr.OldImage)
	out.NewImage = decodeImage(sr.NewImage)
	return out
}

// decodeImage turns a stream attribute map into a product snapshot, or nil
// when the map is absent or not a product
func decodeImage(image map[string]types.AttributeValue) *catalog.Product {
	if len(image) == 0 {
		return nil
	}

	id, ok := image[attrID].(*types.AttributeValueMemberS)
	if !ok {
		return nil
	}
	name, ok := image[attrName].(*types.AttributeValueMemberS)
	if !ok {
		return nil
	}
	priceAttr, ok := image[attrPrice].(*types.AttributeValueMemberN)
	if !ok {
		return nil
	}
	price, err := decimal.NewFromString(priceAttr.Value)
	if err != nil {
		return nil
	}

	return &catalog.Product{
		ID:    id.Value,
		Name:  name.Value,
		Price: price,
	}
}
