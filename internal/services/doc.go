// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers, stage names, and the media
//     file being processed for logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     into skip-this-file versus stop-the-run outcomes.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability) stays uniform across the pipeline.
package services
