package sqlinline

const QInsertDocument = `--sql 791da6ae-5ed5-486c-a3a0-ac116823ae07
insert into documents (
  id,
  user_id,
  title,
  file_name,
  file_url,
  file_public_id,
  file_size,
  status,
  created_at,
  updated_at
) values (
  gen_random_uuid(),
  $1::uuid,
  $2::text,
  $3::text,
  $4::text,
  $5::text,
  $6::bigint,
  'processing',
  now(),
  now()
) returning id, status, created_at, updated_at;
`

const QSelectDocumentForUser = `--sql d7127e51-83a7-4b47-a723-eb04eb5e9e05
select
  id,
  user_id,
  title,
  file_name,
  file_url,
  file_public_id,
  file_size,
  status,
  extracted_text,
  created_at,
  updated_at
from documents
where id = $1::uuid
  and user_id = $2::uuid
limit 1;
`

// Extraction results only apply to documents still processing, so a late
// failure can never regress a ready document.
const QMarkDocumentReady = `--sql 03b4a08a-215c-4d6f-b0c0-c5fda9161bcf
update documents
set status = 'ready',
    extracted_text = $2::text,
    updated_at = now()
where id = $1::uuid
  and status = 'processing';
`

const QMarkDocumentFailed = `--sql 7923140f-15a7-46bb-b93c-46dc9a5d242b
update documents
set status = 'failed',
    updated_at = now()
where id = $1::uuid
  and status = 'processing';
`

const QListDocumentsForUser = `--sql d0b83083-1218-4119-8c2c-9b6c3b24e6bd
select
  id,
  user_id,
  title,
  file_name,
  file_url,
  file_public_id,
  file_size,
  status,
  extracted_text <> '' as has_text,
  created_at,
  updated_at
from documents
where user_id = $1::uuid
order by created_at desc
limit $2::int;
`

// Jobs and video assets go with the document through on delete cascade.
const QDeleteDocumentForUser = `--sql a70ac743-6214-49bc-9afb-5b2024080f53
delete from documents
where id = $1::uuid
  and user_id = $2::uuid;
`
