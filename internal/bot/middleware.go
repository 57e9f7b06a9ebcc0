package bot

import "runtime/debug"

func (b *Bot) withRecovery(handler func()) {
	defer func() {
		if r := recover(); r != nil {
			if b.metrics != nil {
				b.metrics.ErrorsTotal.Inc()
			}
			b.logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic in update handler")
		}
	}()
	handler()
}
