package indexer

import "context"

// Field names shared by queries and decoders.
const (
	FieldBigMapID    = "big_map_id"
	FieldKey         = "key"
	FieldValue       = "value"
	FieldBlockLevel  = "block_level"
	FieldTimestamp   = "timestamp"
	FieldInternal    = "internal"
	FieldParameters  = "parameters"
	FieldEntrypoint  = "parameters_entrypoints"
	FieldGroupHash   = "operation_group_hash"
	FieldAmount      = "amount"
	FieldCounter     = "counter"
	FieldSource      = "source"
	FieldDestination = "destination"
	FieldStatus      = "status"
	FieldKind        = "kind"
)

var (
	BigMapFields    = []string{FieldKey, FieldValue, FieldBlockLevel}
	OperationFields = []string{
		FieldTimestamp, FieldInternal, FieldParameters, FieldEntrypoint, FieldGroupHash,
		FieldAmount, FieldCounter, FieldBlockLevel, FieldSource, FieldDestination, FieldStatus,
	}
)

// BigMapEntry is a key/value pair of a contract big map in Micheline text.
type BigMapEntry struct {
	Key        string
	Value      string
	BlockLevel int64
}

// Operation is a contract call as recorded by the indexer. Timestamp is in
// milliseconds and Amount in mutez.
type Operation struct {
	Timestamp   int64
	Internal    bool
	Parameters  string
	Entrypoint  string
	GroupHash   string
	Amount      int64
	Counter     int64
	BlockLevel  int64
	Source      string
	Destination string
	Status      string
}

func BigMapEntryFromRow(r Row) BigMapEntry {
	return BigMapEntry{Key: r.String(FieldKey), Value: r.String(FieldValue), BlockLevel: r.Int(FieldBlockLevel)}
}

func OperationFromRow(r Row) Operation {
	return Operation{
		Timestamp:   r.Int(FieldTimestamp),
		Internal:    r.Bool(FieldInternal),
		Parameters:  r.String(FieldParameters),
		Entrypoint:  r.String(FieldEntrypoint),
		GroupHash:   r.String(FieldGroupHash),
		Amount:      r.Int(FieldAmount),
		Counter:     r.Int(FieldCounter),
		BlockLevel:  r.Int(FieldBlockLevel),
		Source:      r.String(FieldSource),
		Destination: r.String(FieldDestination),
		Status:      r.String(FieldStatus),
	}
}

// Row renders the operation the way the indexer returns it.
func (o Operation) Row() Row {
	return Row{
		FieldTimestamp:   o.Timestamp,
		FieldInternal:    o.Internal,
		FieldParameters:  o.Parameters,
		FieldEntrypoint:  o.Entrypoint,
		FieldGroupHash:   o.GroupHash,
		FieldAmount:      o.Amount,
		FieldCounter:     o.Counter,
		FieldBlockLevel:  o.BlockLevel,
		FieldSource:      o.Source,
		FieldDestination: o.Destination,
		FieldStatus:      o.Status,
		FieldKind:        "transaction",
	}
}

// BigMap starts a query over one big map.
func BigMap(id int64) Query {
	return NewQuery(BigMapFields...).Where(FieldBigMapID, Eq, id)
}

// Calls starts a query over applied transactions sent to destination.
func Calls(destination string) Query {
	return NewQuery(OperationFields...).
		Where(FieldKind, Eq, "transaction").
		Where(FieldStatus, Eq, "applied").
		Where(FieldDestination, Eq, destination)
}

// Entries runs q against big_map_contents.
func Entries(ctx context.Context, qr Querier, q Query) ([]BigMapEntry, error) {
	rows, err := qr.Query(ctx, BigMapContents, q)
	if err != nil {
		return nil, err
	}
	out := make([]BigMapEntry, len(rows))
	for i, r := range rows {
		out[i] = BigMapEntryFromRow(r)
	}
	return out, nil
}

// Ops runs q against operations.
func Ops(ctx context.Context, qr Querier, q Query) ([]Operation, error) {
	rows, err := qr.Query(ctx, Operations, q)
	if err != nil {
		return nil, err
	}
	out := make([]Operation, len(rows))
	for i, r := range rows {
		out[i] = OperationFromRow(r)
	}
	return out, nil
}
