package sqlinline

const QInsertVideoAsset = `--sql b1516c3d-0de5-48e9-88c1-b84c9f5ddb6d
insert into video_assets (id, document_id, user_id, public_id, secure_url, created_at)
values (gen_random_uuid(), $1::uuid, $2::uuid, $3::text, $4::text, now())
returning id, created_at;
`

const QSelectLatestVideoAsset = `--sql 988c6310-055d-40cd-888f-ff179c0f630a
select id, document_id, user_id, public_id, secure_url, created_at
from video_assets
where document_id = $1::uuid
  and user_id = $2::uuid
order by created_at desc
limit 1;
`

const QListVideoAssetsForDocument = `--sql f5231b0c-a465-4a6d-af50-c54722a99f6c
select id, document_id, user_id, public_id, secure_url, created_at
from video_assets
where document_id = $1::uuid
  and user_id = $2::uuid
order by created_at desc;
`
