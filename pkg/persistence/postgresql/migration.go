package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Core workflow storage: definitions, runs and change history
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				user_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				source_prompt TEXT NOT NULL DEFAULT '',
				status VARCHAR(50) NOT NULL,
				trigger_spec JSONB,
				entry_step_id VARCHAR(255) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				archived_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_user_id ON workflows(user_id);
			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);

			CREATE TABLE workflow_steps (
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				position INT NOT NULL,
				title VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				kind VARCHAR(50) NOT NULL,
				action_id VARCHAR(255) NOT NULL DEFAULT '',
				input_template TEXT NOT NULL DEFAULT '',
				PRIMARY KEY (workflow_id, id)
			);

			CREATE INDEX idx_workflow_steps_workflow_id ON workflow_steps(workflow_id);

			CREATE TABLE workflow_branches (
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				position INT NOT NULL,
				from_step_id VARCHAR(255) NOT NULL,
				to_step_id VARCHAR(255) NOT NULL,
				label VARCHAR(255) NOT NULL DEFAULT '',
				priority INT NOT NULL DEFAULT 0,
				condition JSONB,
				PRIMARY KEY (workflow_id, id)
			);

			CREATE INDEX idx_workflow_branches_workflow_id ON workflow_branches(workflow_id);
			CREATE INDEX idx_workflow_branches_from_step ON workflow_branches(workflow_id, from_step_id);

			CREATE TABLE executions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				user_id VARCHAR(255) NOT NULL,
				trigger_type VARCHAR(50) NOT NULL,
				status VARCHAR(50) NOT NULL,
				step_results JSONB,
				context JSONB,
				attempt INT NOT NULL DEFAULT 0,
				error_message TEXT NOT NULL DEFAULT '',
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				finished_at TIMESTAMP WITH TIME ZONE,
				duration_ms BIGINT NOT NULL DEFAULT 0
			);

			CREATE INDEX idx_executions_workflow_id ON executions(workflow_id);
			CREATE INDEX idx_executions_user_id ON executions(user_id);
			CREATE INDEX idx_executions_status ON executions(status);
			CREATE INDEX idx_executions_started_at ON executions(started_at);

			CREATE TABLE change_entries (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				user_id VARCHAR(255) NOT NULL,
				change_type VARCHAR(50) NOT NULL,
				summary TEXT NOT NULL DEFAULT '',
				snapshot JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_change_entries_workflow_id ON change_entries(workflow_id);
			CREATE INDEX idx_change_entries_created_at ON change_entries(created_at);
		`,
		2: `
			-- Migration 2: human-in-the-loop review

			CREATE TABLE checkpoints (
				id VARCHAR(255) PRIMARY KEY,
				user_id VARCHAR(255) NOT NULL,
				workflow_id VARCHAR(255) NOT NULL,
				execution_id VARCHAR(255) NOT NULL,
				step_id VARCHAR(255) NOT NULL,
				risk_level VARCHAR(50) NOT NULL,
				risk_summary TEXT NOT NULL DEFAULT '',
				proposed_action JSONB,
				previous_step_results JSONB,
				context JSONB,
				status VARCHAR(50) NOT NULL,
				decision VARCHAR(50) NOT NULL DEFAULT '',
				edited_action JSONB,
				rejection_reason TEXT NOT NULL DEFAULT '',
				resolved_by VARCHAR(255) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				resolved_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_checkpoints_user_id ON checkpoints(user_id);
			CREATE INDEX idx_checkpoints_status ON checkpoints(status);
			CREATE INDEX idx_checkpoints_execution_id ON checkpoints(execution_id);

			CREATE TABLE notifications (
				id VARCHAR(255) PRIMARY KEY,
				user_id VARCHAR(255) NOT NULL,
				kind VARCHAR(50) NOT NULL,
				title VARCHAR(255) NOT NULL,
				body TEXT NOT NULL DEFAULT '',
				workflow_id VARCHAR(255) NOT NULL DEFAULT '',
				execution_id VARCHAR(255) NOT NULL DEFAULT '',
				read BOOLEAN NOT NULL DEFAULT FALSE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_notifications_user_id ON notifications(user_id);
			CREATE INDEX idx_notifications_read ON notifications(user_id, read);
		`,
		3: `
			-- Migration 3: background retries and artifact storage

			CREATE TABLE dead_letters (
				id VARCHAR(255) PRIMARY KEY,
				user_id VARCHAR(255) NOT NULL,
				workflow_id VARCHAR(255) NOT NULL,
				execution_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				reason TEXT NOT NULL DEFAULT '',
				attempts INT NOT NULL DEFAULT 0,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				resolved_at TIMESTAMP WITH TIME ZONE,
				resolved_by VARCHAR(255) NOT NULL DEFAULT ''
			);

			CREATE INDEX idx_dead_letters_user_id ON dead_letters(user_id);
			CREATE INDEX idx_dead_letters_status ON dead_letters(status);

			CREATE TABLE artifacts (
				id VARCHAR(255) PRIMARY KEY,
				user_id VARCHAR(255) NOT NULL,
				workflow_id VARCHAR(255) NOT NULL,
				execution_id VARCHAR(255) NOT NULL,
				step_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				content_type VARCHAR(255) NOT NULL DEFAULT '',
				content BYTEA,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_artifacts_user_id ON artifacts(user_id);
			CREATE INDEX idx_artifacts_execution_id ON artifacts(execution_id);
		`,
	}
}
