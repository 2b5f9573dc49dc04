package db

// SchemaSQL contains the database schema initialization SQL.
const SchemaSQL = `
    -- ==========================================================================
    -- PERSONAS
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS personas SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON personas TYPE string;
    DEFINE FIELD IF NOT EXISTS name ON personas TYPE string;
    DEFINE FIELD IF NOT EXISTS titles ON personas TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS keywords ON personas TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS exclude_keywords ON personas TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS locations ON personas TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS channels ON personas TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS lead_goal ON personas TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS created_at ON personas TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON personas TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS personas_user ON personas FIELDS user_id;

    -- ==========================================================================
    -- SCHEDULES
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS schedules SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON schedules TYPE string;
    DEFINE FIELD IF NOT EXISTS name ON schedules TYPE string;
    DEFINE FIELD IF NOT EXISTS action_type ON schedules TYPE string
        ASSERT $value IN ["source_via_persona", "launch_campaign", "send_sequence", "persona_with_auto_outreach"];
    DEFINE FIELD IF NOT EXISTS persona_id ON schedules TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS campaign_id ON schedules TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS auto_outreach ON schedules TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS leads_per_run ON schedules TYPE int DEFAULT 25;
    DEFINE FIELD IF NOT EXISTS send_delay_minutes ON schedules TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS daily_send_cap ON schedules TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS schedule_kind ON schedules TYPE string
        ASSERT $value IN ["one_time", "recurring"];
    DEFINE FIELD IF NOT EXISTS cron_expr ON schedules TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS run_at ON schedules TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS next_run_at ON schedules TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS status ON schedules TYPE string DEFAULT "active"
        ASSERT $value IN ["active", "paused", "completed"];
    DEFINE FIELD IF NOT EXISTS last_run_at ON schedules TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS payload ON schedules TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS last_quality_score ON schedules TYPE option<int>;
    DEFINE FIELD IF NOT EXISTS last_accepted_query ON schedules TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS consecutive_failures ON schedules TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS force_baseline_until ON schedules TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS expansion_preference ON schedules TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created_at ON schedules TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated_at ON schedules TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS schedules_user ON schedules FIELDS user_id;
    DEFINE INDEX IF NOT EXISTS schedules_due ON schedules FIELDS status, next_run_at;

    -- ==========================================================================
    -- SCHEDULE RUN LOGS
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS schedule_run_logs SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON schedule_run_logs TYPE string;
    DEFINE FIELD IF NOT EXISTS schedule_id ON schedule_run_logs TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS persona_id ON schedule_run_logs TYPE string;
    DEFINE FIELD IF NOT EXISTS campaign_id ON schedule_run_logs TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS started_at ON schedule_run_logs TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS completed_at ON schedule_run_logs TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS attempts ON schedule_run_logs TYPE option<array> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS attempts_used ON schedule_run_logs TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS accepted_query ON schedule_run_logs TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS quality_score ON schedule_run_logs TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS confidence ON schedule_run_logs TYPE float DEFAULT 0.0;
    DEFINE FIELD IF NOT EXISTS decision ON schedule_run_logs TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS failure_mode ON schedule_run_logs TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS leads_found ON schedule_run_logs TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS leads_deduped ON schedule_run_logs TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS leads_inserted ON schedule_run_logs TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS outreach_queued ON schedule_run_logs TYPE int DEFAULT 0;
    DEFINE FIELD IF NOT EXISTS notify ON schedule_run_logs TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS notify_payload ON schedule_run_logs TYPE option<object> FLEXIBLE;
    DEFINE INDEX IF NOT EXISTS run_logs_user ON schedule_run_logs FIELDS user_id;
    DEFINE INDEX IF NOT EXISTS run_logs_schedule ON schedule_run_logs FIELDS schedule_id;

    -- ==========================================================================
    -- SOURCING CAMPAIGNS + LEADS
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS sourcing_campaigns SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON sourcing_campaigns TYPE string;
    DEFINE FIELD IF NOT EXISTS name ON sourcing_campaigns TYPE string;
    DEFINE FIELD IF NOT EXISTS persona_id ON sourcing_campaigns TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS sequence_id ON sourcing_campaigns TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS status ON sourcing_campaigns TYPE string DEFAULT "active";
    DEFINE FIELD IF NOT EXISTS created_at ON sourcing_campaigns TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS campaigns_user ON sourcing_campaigns FIELDS user_id;

    DEFINE TABLE IF NOT EXISTS sourcing_leads SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON sourcing_leads TYPE string;
    DEFINE FIELD IF NOT EXISTS campaign_id ON sourcing_leads TYPE string;
    DEFINE FIELD IF NOT EXISTS run_log_id ON sourcing_leads TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS provider_id ON sourcing_leads TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS first_name ON sourcing_leads TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS last_name ON sourcing_leads TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS title ON sourcing_leads TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS company ON sourcing_leads TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS email ON sourcing_leads TYPE string;
    DEFINE FIELD IF NOT EXISTS linkedin_url ON sourcing_leads TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS location ON sourcing_leads TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS created_at ON sourcing_leads TYPE datetime DEFAULT time::now();
    -- Dedup: one email per campaign
    DEFINE FIELD IF NOT EXISTS unique_key ON sourcing_leads VALUE string::concat(campaign_id, ":", string::lowercase(email));
    DEFINE INDEX IF NOT EXISTS unique_lead ON sourcing_leads FIELDS unique_key UNIQUE;
    DEFINE INDEX IF NOT EXISTS leads_campaign ON sourcing_leads FIELDS campaign_id;

    -- ==========================================================================
    -- OUTREACH QUEUE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS outreach_jobs SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON outreach_jobs TYPE string;
    DEFINE FIELD IF NOT EXISTS campaign_id ON outreach_jobs TYPE string;
    DEFINE FIELD IF NOT EXISTS lead_id ON outreach_jobs TYPE string;
    DEFINE FIELD IF NOT EXISTS sequence_id ON outreach_jobs TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS step ON outreach_jobs TYPE int DEFAULT 1;
    DEFINE FIELD IF NOT EXISTS send_at ON outreach_jobs TYPE datetime;
    DEFINE FIELD IF NOT EXISTS status ON outreach_jobs TYPE string DEFAULT "pending"
        ASSERT $value IN ["pending", "sent", "failed"];
    DEFINE FIELD IF NOT EXISTS created_at ON outreach_jobs TYPE datetime DEFAULT time::now();
    DEFINE INDEX IF NOT EXISTS outreach_due ON outreach_jobs FIELDS status, send_at;

    -- ==========================================================================
    -- NOTIFICATION SETTINGS
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS notification_settings SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON notification_settings TYPE string;
    DEFINE FIELD IF NOT EXISTS slack_webhook_url ON notification_settings TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS slack_opt_in ON notification_settings TYPE bool DEFAULT false;
    DEFINE FIELD IF NOT EXISTS email ON notification_settings TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS email_opt_in ON notification_settings TYPE bool DEFAULT false;
    DEFINE INDEX IF NOT EXISTS settings_user ON notification_settings FIELDS user_id UNIQUE;

    -- ==========================================================================
    -- ADVISORY LOCKS
    -- ==========================================================================
    -- One record per held lock, keyed by a hash of the schedule id. CREATE on
    -- an existing id fails, which is the non-blocking acquire semantics.
    DEFINE TABLE IF NOT EXISTS schedule_locks SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS schedule_id ON schedule_locks TYPE string;
    DEFINE FIELD IF NOT EXISTS holder ON schedule_locks TYPE string;
    DEFINE FIELD IF NOT EXISTS acquired_at ON schedule_locks TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS expires_at ON schedule_locks TYPE datetime;
`
