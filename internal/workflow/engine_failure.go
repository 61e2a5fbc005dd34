package workflow

import (
	"context"
	"errors"
	"strings"

	"memeflow/internal/logging"
	"memeflow/internal/runs"
	"memeflow/internal/services"
)

// abort marks the flow aborted. The namespace committed with the record is
// the one as of the last successful node. index is the failing node, or -1
// when the failure happened after the last node.
func (e *Engine) abort(ctx context.Context, ex *execution, index int, cause error) (Result, error) {
	details := services.Details(cause)
	nodeName := ""
	if index >= 0 && index < len(ex.result.Nodes) {
		ex.result.Nodes[index].Status = NodeFailed
		ex.result.Nodes[index].Error = &details
		nodeName = ex.result.Nodes[index].Node
	}

	finished := e.now().UTC()
	ex.record.Status = runs.FlowAborted
	ex.record.FinishedAt = &finished
	ex.record.Error = &runs.FlowError{Kind: string(details.Kind), Message: failureMessage(nodeName, details)}
	ex.result.State = StateAborted
	ex.result.Duration = finished.Sub(ex.start)

	logger := ex.logger
	if nodeName != "" {
		logger = logger.With(logging.String(logging.FieldNode, nodeName))
	}
	logging.ErrorWithContext(logger, "flow aborted", "flow_aborted",
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String("last_node", ex.record.LastNode),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, failureHint(details.Kind)),
		logging.String(logging.FieldImpact, "outputs of earlier nodes were kept"))

	snapshot, err := e.runs.CommitFlow(context.WithoutCancel(ctx), ex.inv.RunID, ex.record, ex.namespace, nil)
	if err != nil {
		logging.ErrorWithContext(logger, "failed to persist flow abort", "flow_abort_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run still shows the flow as running"))
		cause = errors.Join(cause, err)
	} else {
		ex.result.Snapshot = snapshot
	}
	if e.observer != nil {
		e.observer.ObserveFlow(ex.flow.Name, string(StateAborted), ex.result.Duration)
	}
	return ex.result, cause
}

func failureMessage(node string, details services.ErrorDetails) string {
	message := strings.TrimSpace(details.Message)
	if node == "" {
		return message
	}
	if message == "" {
		return node + " failed"
	}
	return node + ": " + message
}

func failureHint(kind services.Kind) string {
	switch kind {
	case services.KindTransient:
		return "the collaborator kept failing; rerun the flow on the same run once it recovers"
	case services.KindComposition:
		return "run the flows this one depends on, or pass the run id that holds their outputs"
	case services.KindUserInput, services.KindNotFound:
		return "check the command arguments and overrides"
	case services.KindConfiguration:
		return "check the configuration file and credentials"
	case services.KindContract:
		return "a collaborator or node returned an unexpected shape; inspect the run log"
	default:
		return "inspect the run log for details"
	}
}
