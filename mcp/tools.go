package mcp

import (
	"context"
	"encoding/json"

	mcp "github.com/metoro-io/mcp-golang"

	"github.com/awantoch/loanscore/constants"
	"github.com/awantoch/loanscore/core"
	"github.com/awantoch/loanscore/model"
	"github.com/awantoch/loanscore/utils"
)

type EmptyArgs struct{}

// PredictArgs is the MCP argument form of model.UserInput.
type PredictArgs struct {
	BankTransactionAverage float64 `json:"bank_transaction_average" jsonschema:"required,description=Average monthly bank transaction amount"`
	SocialMediaScreentime  float64 `json:"social_media_screentime" jsonschema:"required,description=Daily social media screen time in hours"`
	EcommerceScreenTime    float64 `json:"ecommerce_screen_time" jsonschema:"required,description=Daily e-commerce screen time in hours"`
	CIBILScore             int64   `json:"cibil_score" jsonschema:"required,description=CIBIL credit score"`
	GeographicalMovement   float64 `json:"geographical_movement" jsonschema:"required,description=Geographical movement indicator"`
	SocialMediaReach       int64   `json:"social_media_reach" jsonschema:"required,description=Social media reach (followers or connections)"`
}

func (a PredictArgs) UserInput() model.UserInput {
	return model.UserInput{
		BankTransactionAverage: a.BankTransactionAverage,
		SocialMediaScreentime:  a.SocialMediaScreentime,
		EcommerceScreenTime:    a.EcommerceScreenTime,
		CIBILScore:             a.CIBILScore,
		GeographicalMovement:   a.GeographicalMovement,
		SocialMediaReach:       a.SocialMediaReach,
	}
}

// BuildToolRegistrations exposes every registered operation with an MCP name as a tool.
func BuildToolRegistrations(svc core.PredictionService) []ToolRegistration {
	var regs []ToolRegistration
	for _, op := range core.GetAllOperations() {
		if op.MCPName == "" {
			continue
		}
		var handler any
		switch op.ID {
		case constants.OpPredict:
			handler = predictHandler(svc, op)
		case constants.OpDecisions:
			handler = argsHandler[core.DecisionListArgs](svc, op)
		case constants.OpDecision:
			handler = argsHandler[core.DecisionArgs](svc, op)
		default:
			handler = readOnlyHandler(svc, op)
		}
		regs = append(regs, ToolRegistration{Name: op.MCPName, Description: op.Description, Handler: handler})
	}
	return regs
}

func predictHandler(svc core.PredictionService, op *core.OperationDefinition) func(context.Context, PredictArgs) (*mcp.ToolResponse, error) {
	return func(ctx context.Context, args PredictArgs) (*mcp.ToolResponse, error) {
		out, err := op.Invoke(core.WithChannel(ctx, constants.ChannelMCP), svc, args.UserInput())
		if err != nil {
			return nil, err
		}
		return jsonResponse(out)
	}
}

func readOnlyHandler(svc core.PredictionService, op *core.OperationDefinition) func(context.Context, EmptyArgs) (*mcp.ToolResponse, error) {
	return func(ctx context.Context, _ EmptyArgs) (*mcp.ToolResponse, error) {
		out, err := op.Invoke(ctx, svc, op.NewArgs())
		if err != nil {
			return nil, err
		}
		return jsonResponse(out)
	}
}

// argsHandler passes tool arguments of type T straight to the operation.
func argsHandler[T any](svc core.PredictionService, op *core.OperationDefinition) func(context.Context, T) (*mcp.ToolResponse, error) {
	return func(ctx context.Context, args T) (*mcp.ToolResponse, error) {
		out, err := op.Invoke(ctx, svc, args)
		if err != nil {
			return nil, err
		}
		return jsonResponse(out)
	}
}

func jsonResponse(v any) (*mcp.ToolResponse, error) {
	data, err := json.Marshal(v)
	if err != nil {
		utils.Error(constants.LogJSONEncodeFailed, err)
		return nil, err
	}
	return mcp.NewToolResponse(mcp.NewTextContent(string(data))), nil
}
