package config

import "github.com/spf13/viper"

// setDefaults registers values used when neither the file nor the environment sets a key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "jbcast")
	v.SetDefault("app.tz", "UTC")
	v.SetDefault("app.node_id", 1)
	v.SetDefault("app.shutdown_timeout_seconds", 30)
	v.SetDefault("app.max_goroutine", 32)

	v.SetDefault("instrument.enabled", false)
	v.SetDefault("instrument.service_name", "jbcast")
	v.SetDefault("instrument.trace_sample_ratio", 1.0)
	v.SetDefault("instrument.metric_interval_seconds", 15)
	v.SetDefault("instrument.log_level", "info")
	v.SetDefault("instrument.log_mask_fields", "password,secret,token")

	v.SetDefault("database.pool.max_conns", 10)
	v.SetDefault("database.pool.min_conns", 1)
	v.SetDefault("database.pool.max_conn_lifetime_seconds", 3600)
	v.SetDefault("database.pool.max_conn_idle_seconds", 300)
	v.SetDefault("database.pool.health_check_period_seconds", 30)
	v.SetDefault("database.migrate_on_start", false)
	v.SetDefault("database.connect_retries", 5)

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local.root", "./var/uploads")

	v.SetDefault("messaging.driver", "nats")

	v.SetDefault("modules.mailing.enabled", true)
	v.SetDefault("modules.mailing.worker.concurrency", 4)
	v.SetDefault("modules.mailing.worker.queue_size", 5000)
	v.SetDefault("modules.mailing.worker.interval_ms", 2000)
	v.SetDefault("modules.mailing.worker.burst", 1)
	v.SetDefault("modules.mailing.attachment.timeout_seconds", 30)
	v.SetDefault("modules.mailing.attachment.max_file_bytes", 20<<20)
	v.SetDefault("modules.mailing.attachment.max_total_bytes", 25<<20)
	v.SetDefault("modules.mailing.composer.inline_image_dir", "./static/images")
	v.SetDefault("modules.mailing.composer.inline_images", "JB-Connect-Ltd.jpg")
	v.SetDefault("modules.mailing.transport.dial_timeout_seconds", 15)
	v.SetDefault("modules.mailing.transport.command_timeout_seconds", 60)
	v.SetDefault("modules.mailing.dispatch.dedupe_seconds", 30)
}
