package dynamo

import (
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/catalog/backend/internal/domain/catalog"
	"github.com/catalog/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Item attribute names. The table stores exactly these four attributes;
// id is the partition key.
const (
	attrID      = "id"
	attrName    = "name"
	attrPrice   = "price"
	attrVersion = "version"
)

func productKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrID: &types.AttributeValueMemberS{Value: id},
	}
}

// productFromItem decodes a table row. The price travels as a DynamoDB
// number (a decimal string), never as a float.
func productFromItem(item map[string]types.AttributeValue) (*catalog.Product, error) {
	id, err := stringAttr(item, attrID)
	if err != nil {
		return nil, err
	}
	name, err := stringAttr(item, attrName)
	if err != nil {
		return nil, err
	}
	priceStr, err := numberAttr(item, attrPrice)
	if err != nil {
		return nil, err
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return nil, shared.WrapDomainError(shared.ErrValidation.Code, "item has unparsable price", err)
	}

	product := &catalog.Product{ID: id, Name: name, Price: price}

	if raw, ok := item[attrVersion]; ok {
		versionStr, ok := raw.(*types.AttributeValueMemberN)
		if !ok {
			return nil, shared.NewDomainError(shared.ErrValidation.Code, "item version is not a number")
		}
		version, err := strconv.ParseInt(versionStr.Value, 10, 64)
		if err != nil {
			return nil, shared.WrapDomainError(shared.ErrValidation.Code, "item has unparsable version", err)
		}
		product.Version = version
	}
	return product, nil
}

func formatVersion(v int64) string {
	return strconv.FormatInt(v, 10)
}

func stringAttr(item map[string]types.AttributeValue, name string) (string, error) {
	raw, ok := item[name]
	if !ok {
		return "", shared.NewDomainError(shared.ErrValidation.Code, "item is missing attribute "+name)
	}
	s, ok := raw.(*types.AttributeValueMemberS)
	if !ok {
		return "", shared.NewDomainError(shared.ErrValidation.Code, "item attribute "+name+" is not a string")
	}
	return s.Value, nil
}

func numberAttr(item map[string]types.AttributeValue, name string) (string, error) {
	raw, ok := item[name]
	if !ok {
		return "", shared.NewDomainError(shared.ErrValidation.Code, "item is missing attribute "+name)
	}
	n, ok := raw.(*types.AttributeValueMemberN)
	if !ok {
		return "", shared.NewDomainError(shared.ErrValidation.Code, "item attribute "+name+" is not a number")
	}
	return n.Value, nil
}
