package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Document Control API",
        "description": "Engineering document approval, versioning and distribution service",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Auth", "description": "Login and token lifecycle"},
        {"name": "Uploads", "description": "Presigned document uploads"},
        {"name": "Documents", "description": "Document registry"},
        {"name": "Approvals", "description": "Approval workflow"},
        {"name": "Distributions", "description": "Distribution and acknowledgement"},
        {"name": "Versions", "description": "Version history and restore"},
        {"name": "Logs", "description": "Operation log search and export"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Login",
                "security": [],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Rotate refresh token",
                "security": [],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Auth"],
                "summary": "Revoke refresh token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RefreshTokenRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/auth/change-password": {
            "post": {
                "tags": ["Auth"],
                "summary": "Change password",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/uploads/init": {
            "post": {
                "tags": ["Uploads"],
                "summary": "Start a presigned upload",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UploadInitRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Unsupported type or file too large", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/uploads/{uploadId}/complete": {
            "post": {
                "tags": ["Uploads"],
                "summary": "Register an uploaded file as a DRAFT document",
                "parameters": [
                    {"name": "uploadId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CompleteUploadRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "File number already registered", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/documents": {
            "get": {
                "tags": ["Documents"],
                "summary": "Search documents",
                "parameters": [
                    {"name": "file_number", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "current_only", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/documents/{id}": {
            "get": {
                "tags": ["Documents"],
                "summary": "Get a document with a preview link when permitted",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/approvals/submit/{documentId}": {
            "post": {
                "tags": ["Approvals"],
                "summary": "Submit a DRAFT document for approval",
                "parameters": [{"name": "documentId", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid status", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No applicable flow or approver", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Flow misconfigured", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/approvals/approve/{documentId}": {
            "post": {
                "tags": ["Approvals"],
                "summary": "Record a decision on the caller's pending step",
                "parameters": [
                    {"name": "documentId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DecisionRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/approvals/revise/{documentId}": {
            "post": {
                "tags": ["Approvals"],
                "summary": "Return a REJECTED document to DRAFT",
                "parameters": [{"name": "documentId", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/approvals/resolve/{documentId}": {
            "post": {
                "tags": ["Approvals"],
                "summary": "Retry approver resolution for a stalled step",
                "parameters": [{"name": "documentId", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/approvals/progress/{documentId}": {
            "get": {
                "tags": ["Approvals"],
                "summary": "Current round progress",
                "parameters": [{"name": "documentId", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/approvals/history/{documentId}": {
            "get": {
                "tags": ["Approvals"],
                "summary": "All approval records across rounds",
                "parameters": [{"name": "documentId", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/approvals/todo": {
            "get": {
                "tags": ["Approvals"],
                "summary": "Pending steps assigned to the caller",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/distributions/distribute": {
            "post": {
                "tags": ["Distributions"],
                "summary": "Distribute approved current documents",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DistributeRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/distributions/recall": {
            "post": {
                "tags": ["Distributions"],
                "summary": "Recall approved documents",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DocumentIDsRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/distributions/obsolete": {
            "post": {
                "tags": ["Distributions"],
                "summary": "Mark documents obsolete",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DocumentIDsRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/distributions/view/{distributionId}": {
            "post": {
                "tags": ["Distributions"],
                "summary": "Acknowledge viewing",
                "parameters": [{"name": "distributionId", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/distributions/download/{distributionId}": {
            "post": {
                "tags": ["Distributions"],
                "summary": "Acknowledge download and receive a download link",
                "parameters": [{"name": "distributionId", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/distributions/{distributionId}/receivers": {
            "get": {
                "tags": ["Distributions"],
                "summary": "Receivers and acknowledgement state",
                "parameters": [{"name": "distributionId", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/distributions/document/{documentId}": {
            "get": {
                "tags": ["Distributions"],
                "summary": "Distributions of a document",
                "parameters": [{"name": "documentId", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/distributions/inbox": {
            "get": {
                "tags": ["Distributions"],
                "summary": "Documents distributed to the caller",
                "parameters": [
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/versions/create/{documentId}": {
            "post": {
                "tags": ["Versions"],
                "summary": "Create a new DRAFT version",
                "parameters": [
                    {"name": "documentId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateVersionRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/versions/{fileNumber}": {
            "get": {
                "tags": ["Versions"],
                "summary": "All versions of a file number",
                "parameters": [{"name": "fileNumber", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/versions/lineage/{documentId}": {
            "get": {
                "tags": ["Versions"],
                "summary": "Parent chain of a version, root first",
                "parameters": [{"name": "documentId", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/versions/restore/{versionId}": {
            "post": {
                "tags": ["Versions"],
                "summary": "Make a prior version current again as DRAFT",
                "parameters": [{"name": "versionId", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Version already current", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/logs": {
            "get": {
                "tags": ["Logs"],
                "summary": "Search operation logs",
                "parameters": [
                    {"name": "user_id", "in": "query", "type": "string"},
                    {"name": "operation_type", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string", "format": "date-time"},
                    {"name": "to", "in": "query", "type": "string", "format": "date-time"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/logs/export": {
            "get": {
                "tags": ["Logs"],
                "summary": "Export operation logs",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {"200": {"description": "File"}}
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["username", "password"],
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "RefreshTokenRequest": {
            "type": "object",
            "properties": {"refresh_token": {"type": "string"}}
        },
        "UploadInitRequest": {
            "type": "object",
            "required": ["file_name", "file_size"],
            "properties": {
                "file_name": {"type": "string"},
                "file_size": {"type": "integer"},
                "content_type": {"type": "string"},
                "biz_type": {"type": "string"}
            }
        },
        "CompleteUploadRequest": {
            "type": "object",
            "required": ["file_number", "version"],
            "properties": {
                "file_number": {"type": "string"},
                "file_name": {"type": "string"},
                "product_model": {"type": "string"},
                "version": {"type": "string"},
                "importance": {"type": "string", "enum": ["LOW", "NORMAL", "HIGH", "CRITICAL"]},
                "description": {"type": "string"},
                "compile_date": {"type": "string", "format": "date-time"}
            }
        },
        "DecisionRequest": {
            "type": "object",
            "required": ["decision"],
            "properties": {
                "decision": {"type": "string", "enum": ["APPROVED", "REJECTED", "MODIFY_REQUIRED"]},
                "comment": {"type": "string"}
            }
        },
        "DistributeRequest": {
            "type": "object",
            "required": ["document_ids", "target_type", "target_ids"],
            "properties": {
                "document_ids": {"type": "array", "items": {"type": "string"}},
                "target_type": {"type": "string", "enum": ["USER", "DEPARTMENT", "POSITION", "USER_GROUP"]},
                "target_ids": {"type": "array", "items": {"type": "string"}},
                "target_names": {"type": "array", "items": {"type": "string"}},
                "note": {"type": "string"},
                "effective_date": {"type": "string", "format": "date-time"}
            }
        },
        "DocumentIDsRequest": {
            "type": "object",
            "required": ["document_ids"],
            "properties": {"document_ids": {"type": "array", "items": {"type": "string"}}}
        },
        "CreateVersionRequest": {
            "type": "object",
            "required": ["new_version"],
            "properties": {
                "new_version": {"type": "string"},
                "change_description": {"type": "string"},
                "change_reason": {"type": "string"},
                "change_date": {"type": "string", "format": "date-time"},
                "upload_id": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "number": {"type": "integer"},
                "kind": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "message": {"type": "string"},
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
