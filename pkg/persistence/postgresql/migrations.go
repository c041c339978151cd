package postgresql

// migrations returns the versioned schema. JSON-shaped fields (tasks,
// inputs, outputs) live in JSONB columns; everything the repositories filter
// or sort on gets its own column.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS workflows (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				tasks JSONB NOT NULL DEFAULT '[]',
				trigger_type TEXT NOT NULL DEFAULT 'manual',
				trigger_config JSONB,
				timeout_minutes INTEGER NOT NULL DEFAULT 0,
				execution_count INTEGER NOT NULL DEFAULT 0,
				success_count INTEGER NOT NULL DEFAULT 0,
				failure_count INTEGER NOT NULL DEFAULT 0,
				last_execution TIMESTAMP WITH TIME ZONE,
				tags JSONB,
				metadata JSONB,
				owner TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);
			CREATE INDEX IF NOT EXISTS idx_workflows_status ON workflows(status) WHERE deleted_at IS NULL;
			CREATE INDEX IF NOT EXISTS idx_workflows_owner ON workflows(owner) WHERE deleted_at IS NULL;
		`,
		2: `
			CREATE TABLE IF NOT EXISTS runs (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				status TEXT NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				input JSONB,
				output JSONB,
				trigger_source TEXT NOT NULL DEFAULT 'manual',
				trigger_data JSONB,
				logs TEXT NOT NULL DEFAULT '',
				error_message TEXT NOT NULL DEFAULT '',
				tasks_total INTEGER NOT NULL DEFAULT 0,
				tasks_completed INTEGER NOT NULL DEFAULT 0,
				tasks_failed INTEGER NOT NULL DEFAULT 0,
				job_id TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_runs_workflow_id ON runs(workflow_id);
			CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
			CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
		`,
		3: `
			CREATE TABLE IF NOT EXISTS task_runs (
				id TEXT PRIMARY KEY,
				run_id TEXT NOT NULL,
				task_id TEXT NOT NULL,
				task_name TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				input JSONB,
				output JSONB,
				logs TEXT NOT NULL DEFAULT '',
				error TEXT NOT NULL DEFAULT '',
				retry_count INTEGER NOT NULL DEFAULT 0
			);
			CREATE INDEX IF NOT EXISTS idx_task_runs_run_id ON task_runs(run_id);
		`,
		4: `
			CREATE TABLE IF NOT EXISTS schedules (
				id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				type TEXT NOT NULL,
				interval_minutes INTEGER NOT NULL DEFAULT 0,
				cron_expression TEXT NOT NULL DEFAULT '',
				scheduled_time TIMESTAMP WITH TIME ZONE,
				input JSONB,
				is_enabled BOOLEAN NOT NULL DEFAULT TRUE,
				last_run TIMESTAMP WITH TIME ZONE,
				next_run TIMESTAMP WITH TIME ZONE,
				run_count INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_schedules_due ON schedules(next_run) WHERE is_enabled;
		`,
		5: `
			CREATE TABLE IF NOT EXISTS automation_rules (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL,
				is_enabled BOOLEAN NOT NULL DEFAULT TRUE,
				trigger_event TEXT NOT NULL,
				conditions JSONB,
				workflow_id TEXT NOT NULL,
				workflow_input JSONB,
				throttle_minutes INTEGER NOT NULL DEFAULT 0,
				trigger_count INTEGER NOT NULL DEFAULT 0,
				last_triggered TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_rules_trigger_event ON automation_rules(trigger_event);
		`,
	}
}
