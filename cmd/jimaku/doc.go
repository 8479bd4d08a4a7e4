// Command jimaku turns spoken Japanese media files into cleaned WebVTT
// subtitle files. The run command drives the full pipeline; config and
// cache subcommands manage the configuration file and the transcript cache.
package main
