package models

import "slices"

// Connectors combine groups within a tag and rules within a group
const (
	ConnectorAnd = "and"
	ConnectorOr  = "or"
)

// Rule events
const (
	EventDeposit    = "deposit"
	EventWithdrawal = "withdrawal"
	EventLogin      = "login"
	EventNetResult  = "net_result"
)

// Rule aggregations
const (
	AggregationSome  = "some"
	AggregationEvery = "every"
	AggregationSum   = "sum"
	AggregationAvg   = "avg"
	AggregationMin   = "min"
	AggregationMax   = "max"
	AggregationCount = "count"
)

const MetricAmount = "amount"

// Rule operators
const (
	OperatorEq         = "eq"
	OperatorNeq        = "neq"
	OperatorGt         = "gt"
	OperatorGte        = "gte"
	OperatorLt         = "lt"
	OperatorLte        = "lte"
	OperatorBetween    = "between"
	OperatorNotBetween = "not_between"
)

// Period units for the rule look-back window
const (
	PeriodHour  = "hour"
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
	PeriodYear  = "year"
)

// DefaultPeriodValue is used when a rule carries no period length
const DefaultPeriodValue = 240

var (
	Connectors   = []string{ConnectorAnd, ConnectorOr}
	Events       = []string{EventDeposit, EventWithdrawal, EventLogin, EventNetResult}
	Aggregations = []string{AggregationSome, AggregationEvery, AggregationSum, AggregationAvg, AggregationMin, AggregationMax, AggregationCount}
	Metrics      = []string{MetricAmount}
	Operators    = []string{OperatorEq, OperatorNeq, OperatorGt, OperatorGte, OperatorLt, OperatorLte, OperatorBetween, OperatorNotBetween}
	PeriodUnits  = []string{PeriodHour, PeriodDay, PeriodWeek, PeriodMonth, PeriodYear}
)

// RuleEnums is the catalogue exposed to editors
type RuleEnums struct {
	Connectors   []string `json:"connectors"`
	Events       []string `json:"events"`
	Aggregations []string `json:"aggregations"`
	Metrics      []string `json:"metrics"`
	Operators    []string `json:"operators"`
	PeriodUnits  []string `json:"periodUnits"`
}

func AllRuleEnums() RuleEnums {
	return RuleEnums{
		Connectors:   slices.Clone(Connectors),
		Events:       slices.Clone(Events),
		Aggregations: slices.Clone(Aggregations),
		Metrics:      slices.Clone(Metrics),
		Operators:    slices.Clone(Operators),
		PeriodUnits:  slices.Clone(PeriodUnits),
	}
}

// IsBetweenOperator reports whether the operator takes a two-sided range
func IsBetweenOperator(op string) bool {
	return op == OperatorBetween || op == OperatorNotBetween
}

// InEnum reports whether a nullable enum field holds one of the allowed values
func InEnum(v *string, allowed []string) bool {
	return v != nil && slices.Contains(allowed, *v)
}
