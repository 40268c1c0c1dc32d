// Package dto はauthフィーチャーのHTTPトランスポート層のデータ転送オブジェクトを定義します。
// フィールド単位のバリデーションはusecase層で行い、全ての違反をまとめて返します。
package dto

// LoginReq は/loginエンドポイントのリクエストボディを表します。
// emailまたはphoneのどちらか一方で識別します。
type LoginReq struct {
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}
