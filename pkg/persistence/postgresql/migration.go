package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Workflows and their ordered steps
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				slug VARCHAR(255) NOT NULL UNIQUE,
				description TEXT NOT NULL DEFAULT '',
				category VARCHAR(255),
				version VARCHAR(50),
				enabled BOOLEAN NOT NULL DEFAULT false,
				approval_required BOOLEAN NOT NULL DEFAULT false,
				schedule_allowed BOOLEAN NOT NULL DEFAULT false,
				input_schema JSONB,
				default_inputs JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_slug ON workflows(slug);
			CREATE INDEX idx_workflows_enabled ON workflows(enabled);

			CREATE TABLE workflow_steps (
				id VARCHAR(255) NOT NULL,
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				step_order INT NOT NULL,
				name VARCHAR(255) NOT NULL,
				step_type VARCHAR(50) NOT NULL,
				task_id VARCHAR(255),
				input_mapping JSONB,
				output_mapping JSONB,
				condition TEXT NOT NULL DEFAULT '',
				on_failure VARCHAR(50) NOT NULL DEFAULT 'stop',
				config JSONB,
				PRIMARY KEY (workflow_id, id),
				UNIQUE (workflow_id, step_order)
			);

			-- Task catalog
			CREATE TABLE tasks (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				slug VARCHAR(255) NOT NULL UNIQUE,
				description TEXT NOT NULL DEFAULT '',
				category VARCHAR(255),
				input_schema JSONB,
				output_schema JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE TABLE task_implementations (
				id UUID PRIMARY KEY,
				task_id UUID NOT NULL REFERENCES tasks(id) ON DELETE RESTRICT,
				name VARCHAR(255) NOT NULL,
				manufacturer VARCHAR(255) NOT NULL,
				platform VARCHAR(255),
				software_versions JSONB,
				implementation_type VARCHAR(50) NOT NULL,
				template TEXT NOT NULL DEFAULT '',
				action JSONB,
				provider_instance_id UUID,
				priority INT NOT NULL DEFAULT 0,
				enabled BOOLEAN NOT NULL DEFAULT true
			);

			CREATE INDEX idx_task_implementations_task_id ON task_implementations(task_id);
			CREATE INDEX idx_task_implementations_manufacturer ON task_implementations(manufacturer);

			-- Provider registry
			CREATE TABLE provider_definitions (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				driver_key VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				capabilities JSONB,
				supported_platforms JSONB,
				enabled BOOLEAN NOT NULL DEFAULT true
			);

			CREATE TABLE provider_instances (
				id UUID PRIMARY KEY,
				definition_id UUID NOT NULL REFERENCES provider_definitions(id) ON DELETE CASCADE,
				name VARCHAR(255) NOT NULL,
				settings JSONB,
				credential_ref VARCHAR(255),
				scope_locations JSONB,
				scope_tenants JSONB,
				scope_tags JSONB,
				enabled BOOLEAN NOT NULL DEFAULT true,
				UNIQUE (definition_id, name)
			);

			-- Executions and per-step records
			CREATE TABLE executions (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id),
				status VARCHAR(50) NOT NULL,
				operation VARCHAR(50) NOT NULL,
				inputs JSONB,
				context JSONB,
				targets JSONB,
				requested_by VARCHAR(255),
				approved_by VARCHAR(255),
				error TEXT NOT NULL DEFAULT '',
				scheduled_for TIMESTAMP WITH TIME ZONE,
				recurrence VARCHAR(255) NOT NULL DEFAULT '',
				resume_at TIMESTAMP WITH TIME ZONE,
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_executions_workflow_id ON executions(workflow_id);
			CREATE INDEX idx_executions_status ON executions(status);
			CREATE INDEX idx_executions_scheduled_for ON executions(scheduled_for);
			CREATE INDEX idx_executions_resume_at ON executions(resume_at);

			CREATE TABLE execution_steps (
				id UUID PRIMARY KEY,
				execution_id UUID NOT NULL REFERENCES executions(id) ON DELETE CASCADE,
				workflow_step_id VARCHAR(255),
				step_order INT NOT NULL,
				name VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				implementation_id VARCHAR(255),
				provider VARCHAR(255),
				rendered_content TEXT NOT NULL DEFAULT '',
				inputs JSONB,
				outputs JSONB,
				logs TEXT NOT NULL DEFAULT '',
				error_message TEXT NOT NULL DEFAULT '',
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				UNIQUE (execution_id, step_order)
			);

			CREATE INDEX idx_execution_steps_execution_id ON execution_steps(execution_id);
		`,
	}
}
