package controllers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	graphql "github.com/graph-gophers/graphql-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/cppla/socialfeed/utils"
)

var (
	graphqlOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "socialfeed",
		Subsystem: "graphql",
		Name:      "operations_total",
		Help:      "GraphQL operations by type and outcome",
	}, []string{"type", "outcome"})

	graphqlDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "socialfeed",
		Subsystem: "graphql",
		Name:      "operation_duration_seconds",
		Help:      "GraphQL execution latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"type"})
)

// GraphQLController executes GraphQL documents against the schema.
type GraphQLController struct {
	schema *graphql.Schema
}

func NewGraphQLController(schema *graphql.Schema) *GraphQLController {
	return &GraphQLController{schema: schema}
}

type graphqlRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// Post handles POST /graphql.
func (g *GraphQLController) Post(ctx *gin.Context) {
	var req graphqlRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40060, "invalid graphql request payload")
		return
	}
	g.exec(ctx, req)
}

// Get handles GET /graphql for read-only queries.
func (g *GraphQLController) Get(ctx *gin.Context) {
	req := graphqlRequest{
		Query:         ctx.Query("query"),
		OperationName: ctx.Query("operationName"),
	}
	if v := ctx.Query("variables"); v != "" {
		if err := json.Unmarshal([]byte(v), &req.Variables); err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40061, "variables must be a JSON object")
			return
		}
	}
	if operationType(req.Query, req.OperationName) == string(ast.Mutation) {
		utils.Error(ctx, http.StatusMethodNotAllowed, 40562, "mutations must use POST")
		return
	}
	g.exec(ctx, req)
}

// operationType names the kind of operation the document would execute:
// "query", "mutation", "subscription", or "unknown" when the document does not
// parse or operationName selects nothing. Execution reports those cases itself.
func operationType(query, operationName string) string {
	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err != nil {
		return "unknown"
	}
	if operationName == "" {
		if len(doc.Operations) != 1 {
			return "unknown"
		}
		return string(doc.Operations[0].Operation)
	}
	if op := doc.Operations.ForName(operationName); op != nil {
		return string(op.Operation)
	}
	return "unknown"
}

func (g *GraphQLController) exec(ctx *gin.Context, req graphqlRequest) {
	if strings.TrimSpace(req.Query) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40063, "missing query")
		return
	}
	op := operationType(req.Query, req.OperationName)

	start := time.Now()
	resp := g.schema.Exec(ctx.Request.Context(), req.Query, req.OperationName, req.Variables)
	graphqlDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	outcome := "ok"
	if len(resp.Errors) > 0 {
		outcome = "error"
	}
	graphqlOpsTotal.WithLabelValues(op, outcome).Inc()

	ctx.JSON(http.StatusOK, resp)
}
