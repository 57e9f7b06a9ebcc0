package bot

// Stop stops receiving Telegram updates (best-effort). Handlers already
// running finish on their own; Start waits for them before returning.
func (b *Bot) Stop() {
	if b == nil || b.tgService == nil {
		return
	}
	b.tgService.StopReceivingUpdates()
}
