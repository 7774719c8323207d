// Serverless entry point for AWS Lambda behind API Gateway.
package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/awantoch/loanscore/function"
	"github.com/awantoch/loanscore/utils"
)

func main() {
	defer utils.Sync()
	lambda.Start(function.Handle)
}
