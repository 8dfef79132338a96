package bridge

// executor is the handler's single worker loop, run on whatever the
// scheduler provides. It blocks for work, drains every priority level in
// reverse order, refreshes the table-size metrics snapshot, then decides
// whether to exit: only once Quit has flipped the queue's running flag to
// false AND the queue has been fully drained does the loop return. This is
// the corrected stop contract: draining the Stop sentinel alone never
// exits the loop by itself, since further items may have been queued ahead
// of it at a higher priority level in the same drain pass.
func (h *Handler) executor() {
	defer h.metrics.RecordWorkerStop()
	for {
		h.queue.WaitUntilNonEmpty()
		h.queue.Drain(h.dispatch)
		sizes := h.tables.Sizes()
		h.metrics.ObserveTableSizes(sizes)
		if h.recorder != nil {
			h.recorder.RecordTableSnapshot(sizes)
		}
		if !h.queue.IsRunning() && h.queue.Empty() {
			return
		}
	}
}
