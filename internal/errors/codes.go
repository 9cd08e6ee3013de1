package errors

// 에러 코드 상수 정의
// 형식: CATEGORY_SPECIFIC_DETAIL
// 프론트엔드에서 이 코드를 기반으로 메시지를 매핑함
// 성공 응답은 항상 StatusOK("0")

const StatusOK = "0"

const (
	// ==================== 인증 (AUTH_) ====================
	AuthUnauthorized       = "AUTH_UNAUTHORIZED"        // 로그인 필요
	AuthInvalidCredentials = "AUTH_INVALID_CREDENTIALS" // 잘못된 이메일/비밀번호
	AuthTokenExpired       = "AUTH_TOKEN_EXPIRED"       // 토큰 만료
	AuthTokenInvalid       = "AUTH_TOKEN_INVALID"       // 잘못된 토큰
	AuthTokenRevoked       = "AUTH_TOKEN_REVOKED"       // 토큰 폐기됨 (로그아웃)
	AuthEmailAlreadyExists = "AUTH_EMAIL_EXISTS"        // 이메일 중복
	AuthPasswordPolicy     = "AUTH_PASSWORD_POLICY"     // 비밀번호 규칙 위반

	// ==================== 인가/권한 (AUTHZ_) ====================
	AuthzForbidden    = "AUTHZ_FORBIDDEN"      // 접근 권한 없음
	AuthzRoleNotFound = "AUTHZ_ROLE_NOT_FOUND" // 권한 정보 없음
	AuthzAdminOnly    = "AUTHZ_ADMIN_ONLY"     // 관리자만 가능
	AuthzOwnerOnly    = "AUTHZ_OWNER_ONLY"     // 소유자만 가능

	// ==================== 검증 (VALIDATION_) ====================
	ValidationInvalidInput  = "VALIDATION_INVALID_INPUT"  // 잘못된 입력
	ValidationInvalidID     = "VALIDATION_INVALID_ID"     // 잘못된 ID
	ValidationInvalidFormat = "VALIDATION_INVALID_FORMAT" // 잘못된 형식
	ValidationInvalidRange  = "VALIDATION_INVALID_RANGE"  // 범위 초과
	ValidationRequired      = "VALIDATION_REQUIRED"       // 필수 항목

	// ==================== 리소스 (RESOURCE_) ====================
	ResourceNotFound      = "RESOURCE_NOT_FOUND"      // 리소스 없음
	ResourceAlreadyExists = "RESOURCE_ALREADY_EXISTS" // 이미 존재
	ResourceConflict      = "RESOURCE_CONFLICT"       // 충돌

	// ==================== CP 자료 (MATERIAL_) ====================
	MaterialNotFound                  = "MATERIAL_NOT_FOUND"                   // 자료 없음
	MaterialAlreadyExists             = "MATERIAL_ALREADY_EXISTS"              // CP당 1건
	MaterialMissingName               = "MATERIAL_MISSING_NAME"                // CP 이름 누락
	MaterialMissingLicense            = "MATERIAL_MISSING_LICENSE"             // 사업자등록번호 누락
	MaterialMissingVerificationImages = "MATERIAL_MISSING_VERIFICATION_IMAGES" // 인증 이미지 누락
	MaterialMissingReviewComment      = "MATERIAL_MISSING_REVIEW_COMMENT"      // 반려 사유 누락
	MaterialNotEditable               = "MATERIAL_NOT_EDITABLE"                // 검토 중/승인 상태
	MaterialInvalidTransition         = "MATERIAL_INVALID_TRANSITION"          // 허용되지 않는 상태 전이
	MaterialInvalidMode               = "MATERIAL_INVALID_MODE"                // 알 수 없는 저장 모드
	MaterialSubmissionInFlight        = "MATERIAL_SUBMISSION_IN_FLIGHT"        // 동시 제출

	// ==================== 알림 (NOTIFICATION_) ====================
	NotificationNotFound = "NOTIFICATION_NOT_FOUND" // 알림 없음

	// ==================== 업로드 (UPLOAD_) ====================
	UploadInvalidFileType = "UPLOAD_INVALID_FILE_TYPE" // 잘못된 파일 형식
	UploadFileTooLarge    = "UPLOAD_FILE_TOO_LARGE"    // 파일 너무 큼
	UploadFailed          = "UPLOAD_FAILED"            // 업로드 실패

	// ==================== 내부 오류 (INTERNAL_) ====================
	InternalServerError   = "INTERNAL_SERVER_ERROR"   // 서버 오류
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR" // DB 오류
	InternalExternalAPI   = "INTERNAL_EXTERNAL_API"   // 외부 API 오류
	InternalConfigError   = "INTERNAL_CONFIG_ERROR"   // 설정 오류
)
