package core

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"sort"

	"github.com/awantoch/loanscore/constants"
	"github.com/awantoch/loanscore/features"
	"github.com/awantoch/loanscore/model"
)

// OperationDefinition describes one operation exposed over HTTP, the CLI and MCP.
type OperationDefinition struct {
	ID          string       // Unique identifier
	Name        string       // Human-readable name
	Description string       // Description for help/docs
	HTTPMethod  string       // HTTP method (GET, POST)
	HTTPPath    string       // HTTP path
	CLIUse      string       // CLI usage pattern
	MCPName     string       // MCP tool name
	ArgsType    reflect.Type // Type for operation arguments
	Handler     func(ctx context.Context, svc PredictionService, args any) (any, error)
}

// EmptyArgs is the argument type of operations that take none.
type EmptyArgs struct{}

// DecisionListArgs pages the audit trail.
type DecisionListArgs struct {
	Limit int `json:"limit,omitempty" jsonschema:"description=Maximum number of decisions to return (default 50, max 1000)"`
}

// DecisionArgs names one audited decision.
type DecisionArgs struct {
	ID string `json:"id" jsonschema:"required,description=Decision id (UUID)"`
}

var operationRegistry = make(map[string]*OperationDefinition)

// RegisterOperation registers an operation definition.
func RegisterOperation(op *OperationDefinition) {
	if op.MCPName == "" {
		op.MCPName = op.ID
	}
	operationRegistry[op.ID] = op
}

// GetOperation retrieves an operation by ID.
func GetOperation(id string) (*OperationDefinition, bool) {
	op, exists := operationRegistry[id]
	return op, exists
}

// GetAllOperations returns every registered operation ordered by ID.
func GetAllOperations() []*OperationDefinition {
	ops := make([]*OperationDefinition, 0, len(operationRegistry))
	for _, op := range operationRegistry {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].ID < ops[j].ID })
	return ops
}

// NewArgs allocates a pointer to a zero value of the operation's argument type.
func (op *OperationDefinition) NewArgs() any {
	if op.ArgsType == nil {
		return &EmptyArgs{}
	}
	return reflect.New(op.ArgsType).Interface()
}

// Invoke runs the operation. args may be a value or a pointer of ArgsType.
func (op *OperationDefinition) Invoke(ctx context.Context, svc PredictionService, args any) (any, error) {
	if args != nil && op.ArgsType != nil {
		v := reflect.ValueOf(args)
		if v.Kind() == reflect.Ptr {
			v = v.Elem()
		}
		if v.Type() != op.ArgsType {
			return nil, fmt.Errorf("operation %s expects %s, got %T", op.ID, op.ArgsType, args)
		}
		args = v.Interface()
	}
	return op.Handler(ctx, svc, args)
}

func init() {
	RegisterOperation(&OperationDefinition{
		ID:          constants.OpPredict,
		Name:        "Predict",
		Description: "Score a loan application and return the predicted class and approval probability",
		HTTPMethod:  http.MethodPost,
		HTTPPath:    constants.PathPredict,
		CLIUse:      constants.CmdPredict,
		MCPName:     constants.MCPToolPredict,
		ArgsType:    reflect.TypeOf(model.UserInput{}),
		Handler: func(ctx context.Context, svc PredictionService, args any) (any, error) {
			in, ok := args.(model.UserInput)
			if !ok {
				return nil, fmt.Errorf("predict: unexpected arguments %T", args)
			}
			return svc.Predict(ctx, in)
		},
	})

	RegisterOperation(&OperationDefinition{
		ID:          constants.OpSchema,
		Name:        "Feature Schema",
		Description: "List request fields, their training-time columns and types, in pipeline order",
		HTTPMethod:  http.MethodGet,
		HTTPPath:    constants.PathSchema,
		CLIUse:      constants.CmdSchema,
		MCPName:     constants.MCPToolSchema,
		ArgsType:    reflect.TypeOf(EmptyArgs{}),
		Handler: func(ctx context.Context, svc PredictionService, args any) (any, error) {
			return append([]features.Column(nil), features.Schema...), nil
		},
	})

	RegisterOperation(&OperationDefinition{
		ID:          constants.OpInfo,
		Name:        "Pipeline Info",
		Description: "Describe the loaded pipeline artifact",
		HTTPMethod:  http.MethodGet,
		HTTPPath:    constants.PathInfo,
		CLIUse:      constants.CmdInspect,
		MCPName:     constants.MCPToolInfo,
		ArgsType:    reflect.TypeOf(EmptyArgs{}),
		Handler: func(ctx context.Context, svc PredictionService, args any) (any, error) {
			return svc.Info(ctx)
		},
	})

	RegisterOperation(&OperationDefinition{
		ID:          constants.OpDecisions,
		Name:        "List Decisions",
		Description: "List recently served decisions from the audit trail, newest first",
		HTTPMethod:  http.MethodGet,
		HTTPPath:    constants.PathDecisions,
		CLIUse:      constants.CmdList,
		MCPName:     constants.MCPToolDecisions,
		ArgsType:    reflect.TypeOf(DecisionListArgs{}),
		Handler: func(ctx context.Context, svc PredictionService, args any) (any, error) {
			a, _ := args.(DecisionListArgs)
			return svc.ListDecisions(ctx, a.Limit)
		},
	})

	RegisterOperation(&OperationDefinition{
		ID:          constants.OpDecision,
		Name:        "Get Decision",
		Description: "Show one served decision from the audit trail",
		HTTPMethod:  http.MethodGet,
		HTTPPath:    constants.PathDecision,
		CLIUse:      constants.CmdGet + " <id>",
		MCPName:     constants.MCPToolDecision,
		ArgsType:    reflect.TypeOf(DecisionArgs{}),
		Handler: func(ctx context.Context, svc PredictionService, args any) (any, error) {
			a, ok := args.(DecisionArgs)
			if !ok {
				return nil, fmt.Errorf("decision: unexpected arguments %T", args)
			}
			return svc.GetDecision(ctx, a.ID)
		},
	})
}
