package logger

import "context"

type fieldsKey struct{}

// ContextWithFields returns a copy of ctx carrying fields merged over any
// already stored. Logger.WithContext picks them up.
func ContextWithFields(ctx context.Context, fields Fields) context.Context {
	merged := make(Fields, len(fields))
	for k, v := range FieldsFromContext(ctx) {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return context.WithValue(ctx, fieldsKey{}, merged)
}

func FieldsFromContext(ctx context.Context) Fields {
	fields, _ := ctx.Value(fieldsKey{}).(Fields)
	return fields
}
