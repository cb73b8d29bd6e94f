package sqlinline

const QCreateInvocationsTable = `--sql df2c645f-2c7e-420f-a0fb-2f86db7aa7fb
create table if not exists program_invocations (
  id            uuid primary key,
  cluster       text not null,
  program_id    text not null,
  instruction   text not null,
  signature     text,
  status        text not null,
  error_message text not null default '',
  slot          bigint not null default 0,
  args          jsonb not null default '{}'::jsonb,
  created_at    timestamptz not null default now(),
  updated_at    timestamptz not null default now()
);
create index if not exists program_invocations_status_created_idx
  on program_invocations(status, created_at);
`

const QInsertInvocation = `--sql 478c0a3e-b651-47d8-bac9-063044c0b963
insert into program_invocations(
  id,
  cluster,
  program_id,
  instruction,
  signature,
  status,
  error_message,
  slot,
  args,
  created_at,
  updated_at
) values (
  $1::uuid,
  $2::text,
  $3::text,
  $4::text,
  nullif($5::text, ''),
  $6::text,
  $7::text,
  $8::bigint,
  coalesce($9::jsonb, '{}'::jsonb),
  now(),
  now()
)
returning created_at, updated_at;
`

const QUpdateInvocationStatus = `--sql 3bfa008c-382a-4429-922d-21759ef134a3
update program_invocations
set status = $2::text,
    error_message = coalesce($3::text, error_message),
    slot = coalesce($4::bigint, slot),
    updated_at = now()
where id = $1::uuid;
`

const QSelectInvocationByID = `--sql 6782906d-f2e2-4355-a594-0dc2d5e7a33a
select id::text, cluster, program_id, instruction, coalesce(signature, ''), status, error_message, slot, args, created_at, updated_at
from program_invocations
where id = $1::uuid
limit 1;
`

const QListRecentInvocations = `--sql c337e09e-19e0-450c-b152-1e8888a3e5ee
select id::text, cluster, program_id, instruction, coalesce(signature, ''), status, error_message, slot, args, created_at, updated_at
from program_invocations
order by created_at desc
limit $1::int;
`

const QListPendingInvocations = `--sql a26eb93c-ced1-41fa-89b9-83f98df5abb8
select id::text, cluster, program_id, instruction, coalesce(signature, ''), status, error_message, slot, args, created_at, updated_at
from program_invocations
where status = 'PENDING'
order by created_at asc
limit $1::int;
`

// All lists every statement so tooling and tests can check markers in one place.
var All = map[string]string{
	"QCreateInvocationsTable": QCreateInvocationsTable,
	"QInsertInvocation":       QInsertInvocation,
	"QUpdateInvocationStatus": QUpdateInvocationStatus,
	"QSelectInvocationByID":   QSelectInvocationByID,
	"QListRecentInvocations":  QListRecentInvocations,
	"QListPendingInvocations": QListPendingInvocations,
}
